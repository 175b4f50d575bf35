package session_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/portal"
	"github.com/victornm/quizportal/internal/session"
)

type fakePortal struct {
	mu sync.Mutex

	control      *domain.TestControl
	controlErr   error
	questions    []domain.Question
	questionsErr error
	submitErr    error
	registerErr  error
	userToken    string

	calls       map[string]int
	submissions []domain.Submission
	tokens      []string
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		control: &domain.TestControl{Active: true, QuestionLimit: 10, TimeLimit: 1},
		calls:   make(map[string]int),
	}
}

func (p *fakePortal) record(op string, creds portal.CredentialProvider) {
	p.calls[op]++
	if creds != nil {
		tok, _ := creds.GetToken(context.Background())
		p.tokens = append(p.tokens, tok)
	}
}

func (p *fakePortal) GetTestControl(_ context.Context, creds portal.CredentialProvider) (*domain.TestControl, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record("control", creds)
	return p.control, p.controlErr
}

func (p *fakePortal) ListQuestions(_ context.Context, creds portal.CredentialProvider) ([]domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record("questions", creds)
	return p.questions, p.questionsErr
}

func (p *fakePortal) SubmitResult(_ context.Context, creds portal.CredentialProvider, s domain.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record("submit", creds)
	p.submissions = append(p.submissions, s)
	return p.submitErr
}

func (p *fakePortal) RegisterCandidate(_ context.Context, creds portal.CredentialProvider, fullName, email string) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record("register", creds)
	if p.registerErr != nil {
		return "", "", p.registerErr
	}

	return "user-" + email, p.userToken, nil
}

func (p *fakePortal) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[op]
}

func (p *fakePortal) lastSubmission() domain.Submission {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.submissions[len(p.submissions)-1]
}

type fakeCredentials struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{tokens: make(map[string]string)}
}

func (c *fakeCredentials) SetUserToken(_ context.Context, clientID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[clientID] = token
	return nil
}

func (c *fakeCredentials) Token(_ context.Context, clientID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tokens[clientID], nil
}

type fakeTicker struct {
	c chan time.Time
}

func newFakeTicker(buffer int) *fakeTicker {
	return &fakeTicker{c: make(chan time.Time, buffer)}
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               {}

func mcqs(answers ...string) []domain.Question {
	qs := make([]domain.Question, 0, len(answers))
	for i, a := range answers {
		qs = append(qs, domain.Question{
			QuestionID:   fmt.Sprintf("q%d", i+1),
			QuestionText: fmt.Sprintf("question %d", i+1),
			Body:         domain.MultipleChoice{Options: []string{"A", "B", "C", "X"}, Answer: a},
		})
	}

	return qs
}

func newActiveController(p *fakePortal) *session.Controller {
	c := session.NewController(session.ControllerConfig{
		Loader:    session.NewLoader(session.LoaderConfig{Source: p}),
		Results:   p,
		Candidate: domain.Candidate{FullName: "Ada", Email: "ada@example.com"},
	})
	c.Load(context.Background())

	return c
}
