package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/event"
	"github.com/victornm/quizportal/internal/portal"
)

const defaultRetention = 30 * time.Minute

// Portal is the part of the assessment API a candidate session uses.
type Portal interface {
	Source
	Results
	RegisterCandidate(ctx context.Context, creds portal.CredentialProvider, fullName, email string) (userID, token string, err error)
}

// Credentials holds the tokens of browser clients.
type Credentials interface {
	SetUserToken(ctx context.Context, clientID, token string) error
	Token(ctx context.Context, clientID string) (string, error)
}

type Config struct {
	Portal      Portal
	Credentials Credentials
	EventBus    *event.Bus
	// DefaultTimeLimit in minutes, used when test control carries none.
	DefaultTimeLimit int
	// Retention is how long an ended session stays queryable.
	Retention     time.Duration
	NewTickerFunc NewTickerFunc
	Now           func() time.Time
}

// Service keeps the candidate sessions of this process.
type Service struct {
	portal    Portal
	creds     Credentials
	eb        *event.Bus
	loader    *Loader
	retention time.Duration
	newTicker NewTickerFunc
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	info   domain.SessionInfo
	c      *Controller
	hidden chan struct{}
	// done is closed when the countdown driver returns, nil when none was started.
	done chan struct{}

	once    sync.Once
	endTime time.Time
}

func NewService(c Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		portal:    c.Portal,
		creds:     c.Credentials,
		eb:        c.EventBus,
		retention: c.Retention,
		newTicker: c.NewTickerFunc,
		now:       c.Now,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*entry),
	}

	s.loader = NewLoader(LoaderConfig{
		Source:           c.Portal,
		DefaultTimeLimit: c.DefaultTimeLimit,
	})

	if s.retention <= 0 {
		s.retention = defaultRetention
	}
	if s.newTicker == nil {
		s.newTicker = newTimeTicker
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// StartSessionRequest represents a candidate asking to start the test.
type StartSessionRequest struct {
	// ClientID identifies the browser, its stored token is used for every remote call.
	ClientID string
	FullName string
	Email    string
}

type StartSessionResponse struct {
	SessionID string
	View      View
}

// StartSession registers the candidate, loads the test and, when it may run, starts the countdown.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error) {
	cand, err := validateCandidate(req.FullName, req.Email)
	if err != nil {
		return nil, err
	}

	creds := clientCredentials{store: s.creds, clientID: req.ClientID}

	userID, token, err := s.portal.RegisterCandidate(ctx, creds, cand.FullName, cand.Email)
	if err != nil {
		return nil, fmt.Errorf("register candidate: %w", err)
	}
	cand.UserID = userID

	if token != "" && req.ClientID != "" && s.creds != nil {
		if err := s.creds.SetUserToken(ctx, req.ClientID, token); err != nil {
			return nil, err
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	e := &entry{
		info: domain.SessionInfo{
			SessionID: id.String(),
			Candidate: cand,
			StartTime: s.now(),
		},
		c: NewController(ControllerConfig{
			Loader:      s.loader,
			Results:     s.portal,
			Credentials: creds,
			Candidate:   cand,
		}),
		hidden: make(chan struct{}, 1),
	}

	state := e.c.Load(ctx)
	e.info.QuestionCount = e.c.View().Total

	s.mu.Lock()
	s.sweepLocked()
	s.sessions[e.info.SessionID] = e
	s.mu.Unlock()

	if state == StateActive {
		s.eb.Publish(ctx, domain.EventSessionStarted{Session: e.info})
		s.startCountdown(e)
	} else {
		s.finish(ctx, e)
	}

	return &StartSessionResponse{
		SessionID: e.info.SessionID,
		View:      e.c.View(),
	}, nil
}

func (s *Service) startCountdown(e *entry) {
	e.done = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(e.done)

		e.c.Run(s.ctx, s.newTicker(tickInterval), e.hidden)
		s.finish(s.ctx, e)
	}()
}

func (s *Service) GetSession(_ context.Context, id string) (View, error) {
	e, err := s.get(id)
	if err != nil {
		return View{}, err
	}

	return e.c.View(), nil
}

type RecordAnswerRequest struct {
	SessionID string
	Answer    string
}

// RecordAnswer sets the answer of the current question.
func (s *Service) RecordAnswer(_ context.Context, req RecordAnswerRequest) (View, error) {
	e, err := s.get(req.SessionID)
	if err != nil {
		return View{}, err
	}

	if err := e.c.Record(req.Answer); err != nil {
		return e.c.View(), err
	}

	return e.c.View(), nil
}

type NavigateRequest struct {
	SessionID string
	Forward   bool
}

func (s *Service) Navigate(_ context.Context, req NavigateRequest) (View, error) {
	e, err := s.get(req.SessionID)
	if err != nil {
		return View{}, err
	}

	move := e.c.Prev
	if req.Forward {
		move = e.c.Next
	}
	if err := move(); err != nil {
		return e.c.View(), err
	}

	return e.c.View(), nil
}

type SubmitRequest struct {
	SessionID string
	// Confirmed answers the "some questions are unanswered, submit anyway?" prompt.
	Confirmed bool
}

func (s *Service) Submit(ctx context.Context, req SubmitRequest) (View, error) {
	e, err := s.get(req.SessionID)
	if err != nil {
		return View{}, err
	}

	if err := e.c.Submit(ctx, req.Confirmed); err != nil {
		return e.c.View(), err
	}
	s.finish(ctx, e)

	return e.c.View(), nil
}

// Hide reports the candidate's page as hidden. The signal goes through the countdown
// driver so that it is ordered against a pending expiry.
func (s *Service) Hide(ctx context.Context, id string) (View, error) {
	e, err := s.get(id)
	if err != nil {
		return View{}, err
	}

	if e.done == nil {
		e.c.Hide(ctx)
	} else {
		select {
		case e.hidden <- struct{}{}:
		default:
		}

		select {
		case <-e.done:
		case <-ctx.Done():
			return e.c.View(), ctx.Err()
		}
	}
	s.finish(ctx, e)

	return e.c.View(), nil
}

// Stop stops all countdowns and waits for them to return.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) get(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session not found: id=%s", id))
	}

	return e, nil
}

// finish publishes the end of the session once it reached a terminal state.
func (s *Service) finish(ctx context.Context, e *entry) {
	v := e.c.View()
	if !v.State.Terminal() {
		return
	}

	e.once.Do(func() {
		s.mu.Lock()
		e.endTime = s.now()
		s.mu.Unlock()

		slog.InfoContext(ctx, "session: ended", "session", e.info.SessionID, "state", v.State.String())

		s.eb.Publish(ctx, domain.EventSessionEnded{
			Session:    e.info,
			Outcome:    outcomeOf(v.State),
			Reason:     v.Message,
			Submission: v.Submission,
		})
	})
}

func (s *Service) sweepLocked() {
	now := s.now()
	for id, e := range s.sessions {
		if !e.endTime.IsZero() && now.Sub(e.endTime) > s.retention {
			delete(s.sessions, id)
		}
	}
}

func outcomeOf(st State) domain.Outcome {
	switch st {
	case StateUnavailable:
		return domain.OutcomeUnavailable
	case StateError:
		return domain.OutcomeLoadError
	case StateAbandoned:
		return domain.OutcomeAbandoned
	case StateCompleted:
		return domain.OutcomeCompleted
	case StateSubmitFailed:
		return domain.OutcomeSubmitFailed
	default:
		return ""
	}
}

func validateCandidate(fullName, email string) (domain.Candidate, error) {
	c := domain.Candidate{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.TrimSpace(email),
	}

	if c.FullName == "" || c.Email == "" {
		return c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("please enter your full name and email"))
	}

	if _, err := mail.ParseAddress(c.Email); err != nil {
		return c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid email: %s", c.Email), errors.WithCause(err))
	}

	return c, nil
}

type clientCredentials struct {
	store    Credentials
	clientID string
}

func (c clientCredentials) GetToken(ctx context.Context) (string, error) {
	if c.store == nil || c.clientID == "" {
		return "", nil
	}

	return c.store.Token(ctx, c.clientID)
}
