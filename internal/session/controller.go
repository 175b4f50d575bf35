package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/portal"
	"github.com/victornm/quizportal/internal/score"
)

type State int

const (
	StateLoading State = iota
	StateUnavailable
	StateError
	StateActive
	StateAbandoned
	StateSubmitting
	StateCompleted
	StateSubmitFailed
)

var stateNames = map[State]string{
	StateLoading:      "loading",
	StateUnavailable:  "unavailable",
	StateError:        "error",
	StateActive:       "active",
	StateAbandoned:    "abandoned",
	StateSubmitting:   "submitting",
	StateCompleted:    "completed",
	StateSubmitFailed: "submit_failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateUnavailable, StateError, StateAbandoned, StateCompleted, StateSubmitFailed:
		return true
	default:
		return false
	}
}

const (
	MessageUnavailable = "Test not active. Waiting for admin to start the test, contact the administrator."
	MessageLoadError   = "Could not load test. Check your backend connection."
	MessageAbandoned   = "Test ended. You switched tabs or reloaded."
	MessageCompleted   = "Your responses have been recorded successfully."
	MessageSubmitError = "Failed to save result to server."
)

var (
	ErrNotActive            = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session is not active"))
	ErrConfirmationRequired = errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("some questions are unanswered, confirm to submit anyway"))
	ErrAlreadySubmitted     = errors.New(errors.CodeAlreadyExists, errors.WithMessagef("test is already submitted"))
)

// Results receives the submission, exactly once per session.
type Results interface {
	SubmitResult(ctx context.Context, creds portal.CredentialProvider, s domain.Submission) error
}

type ControllerConfig struct {
	Loader      *Loader
	Results     Results
	Credentials portal.CredentialProvider
	Candidate   domain.Candidate
}

// Controller owns one candidate's test session. All methods are safe for concurrent
// use; they are serialized the way UI callbacks are on a single event loop.
type Controller struct {
	loader  *Loader
	results Results
	creds   portal.CredentialProvider

	candidate domain.Candidate

	mu         sync.Mutex
	loading    bool
	state      State
	reason     string
	questions  []domain.Question
	answers    map[string]string
	index      int
	remaining  int
	submitted  bool
	submission *domain.Submission
}

func NewController(c ControllerConfig) *Controller {
	return &Controller{
		loader:    c.Loader,
		results:   c.Results,
		creds:     c.Credentials,
		candidate: c.Candidate,
		state:     StateLoading,
		answers:   make(map[string]string),
	}
}

// Load runs the loader once and moves the session out of Loading.
func (c *Controller) Load(ctx context.Context) State {
	c.mu.Lock()
	if c.state != StateLoading || c.loading {
		defer c.mu.Unlock()
		return c.state
	}
	c.loading = true
	c.mu.Unlock()

	ready, err := c.loader.Load(ctx, c.creds)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case errors.HasCode(err, errors.CodeFailedPrecondition):
		c.state, c.reason = StateUnavailable, errors.Convert(err).Message
		slog.InfoContext(ctx, "session: test unavailable", "email", c.candidate.Email, "reason", c.reason)
	case err != nil:
		c.state, c.reason = StateError, MessageLoadError
		slog.ErrorContext(ctx, "session: load test failed", "email", c.candidate.Email, "error", err)
	default:
		c.state = StateActive
		c.questions = ready.Questions
		c.remaining = ready.Countdown
		c.index = 0
	}

	return c.state
}

// Record sets the answer of the current question, replacing any previous one.
func (c *Controller) Record(answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return ErrNotActive
	}

	c.answers[c.questions[c.index].QuestionID] = answer
	return nil
}

// Next moves to the next question, it is a no-op on the last one.
func (c *Controller) Next() error {
	return c.move(1)
}

// Prev moves to the previous question, it is a no-op on the first one.
func (c *Controller) Prev() error {
	return c.move(-1)
}

func (c *Controller) move(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return ErrNotActive
	}

	i := c.index + delta
	if i < 0 || i > len(c.questions)-1 {
		return nil
	}
	c.index = i

	return nil
}

// Submit finalizes the session. With unanswered questions it only proceeds when
// confirmed, otherwise ErrConfirmationRequired is returned and nothing changes.
func (c *Controller) Submit(ctx context.Context, confirmed bool) error {
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if len(c.answers) < len(c.questions) && !confirmed {
		c.mu.Unlock()
		return ErrConfirmationRequired
	}

	s := c.beginSubmitLocked()
	c.mu.Unlock()

	c.deliver(ctx, s)
	return nil
}

// Tick advances the countdown by one second and submits when it reaches zero.
// Ticks outside Active are ignored.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}

	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		c.mu.Unlock()
		return
	}

	slog.InfoContext(ctx, "session: time is up, submitting", "email", c.candidate.Email)
	s := c.beginSubmitLocked()
	c.mu.Unlock()

	c.deliver(ctx, s)
}

// Hide ends an active session when the candidate leaves the page. Unsubmitted answers are discarded.
func (c *Controller) Hide(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return
	}

	c.state, c.reason = StateAbandoned, MessageAbandoned
	c.answers = make(map[string]string)
	slog.InfoContext(ctx, "session: abandoned", "email", c.candidate.Email)
}

func (c *Controller) beginSubmitLocked() domain.Submission {
	c.submitted = true
	c.state = StateSubmitting

	s := score.BuildSubmission(score.BuildSubmissionRequest{
		Candidate: c.candidate,
		Questions: c.questions,
		Answers:   c.answers,
	})
	c.submission = &s

	return s
}

// deliver runs to completion even if the caller goes away, only the transport timeout bounds it.
func (c *Controller) deliver(ctx context.Context, s domain.Submission) {
	ctx = context.WithoutCancel(ctx)
	err := c.results.SubmitResult(ctx, c.creds, s)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state, c.reason = StateSubmitFailed, MessageSubmitError
		slog.ErrorContext(ctx, "session: save result failed", "email", c.candidate.Email, "error", err)
		return
	}

	c.state, c.reason = StateCompleted, MessageCompleted
	slog.InfoContext(ctx, "session: result saved", "email", c.candidate.Email, "score", s.ScorePercent)
}

// View is a snapshot of the session.
type View struct {
	State   State
	Message string
	// Index of the current question, Question is nil outside Active.
	Index      int
	Total      int
	Question   *domain.Question
	Answer     string
	Answered   int
	Remaining  time.Duration
	Submission *domain.Submission
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:     c.state,
		Message:   c.reason,
		Index:     c.index,
		Total:     len(c.questions),
		Answered:  len(c.answers),
		Remaining: time.Duration(c.remaining) * time.Second,
	}

	if c.state == StateActive {
		q := c.questions[c.index]
		v.Question = &q
		v.Answer = c.answers[q.QuestionID]
	}

	if c.submission != nil && c.state != StateAbandoned {
		s := *c.submission
		v.Submission = &s
	}

	return v
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Controller) Candidate() domain.Candidate {
	return c.candidate
}
