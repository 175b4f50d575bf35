package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/portal"
)

const (
	defaultTimeLimit = 30

	reasonNotStarted  = "test not started by administrator"
	reasonNoQuestions = "no questions available"
)

// Source is the part of the assessment API a session is loaded from.
type Source interface {
	GetTestControl(ctx context.Context, creds portal.CredentialProvider) (*domain.TestControl, error)
	ListQuestions(ctx context.Context, creds portal.CredentialProvider) ([]domain.Question, error)
}

type LoaderConfig struct {
	Source Source
	// DefaultTimeLimit in minutes, used when test control carries none.
	DefaultTimeLimit int
}

// Loader resolves whether a test may run and with which questions and time budget.
type Loader struct {
	src              Source
	defaultTimeLimit int
}

func NewLoader(c LoaderConfig) *Loader {
	tl := c.DefaultTimeLimit
	if tl <= 0 {
		tl = defaultTimeLimit
	}

	return &Loader{
		src:              c.Source,
		defaultTimeLimit: tl,
	}
}

// Ready is a session that may start.
type Ready struct {
	Questions []domain.Question
	// Countdown is the time the candidate has, in whole seconds.
	Countdown int
}

// Load fetches test control and then, only if the test is active, the question bank.
// A test that may not run is reported as FailedPrecondition with a human readable reason,
// any failure of the remote calls is returned as is. No call is retried.
func (l *Loader) Load(ctx context.Context, creds portal.CredentialProvider) (*Ready, error) {
	tc, err := l.src.GetTestControl(ctx, creds)
	if err != nil {
		return nil, err
	}

	if tc == nil || !tc.Active {
		return nil, unavailable(reasonNotStarted)
	}

	qs, err := l.src.ListQuestions(ctx, creds)
	if errors.HasCode(err, errors.CodeFailedPrecondition) {
		return nil, unavailable(errors.Convert(err).Message)
	}
	if err != nil {
		return nil, err
	}

	if len(qs) == 0 {
		return nil, unavailable(reasonNoQuestions)
	}

	if tc.QuestionLimit > 0 && tc.QuestionLimit < len(qs) {
		qs = qs[:tc.QuestionLimit]
	}

	tl := tc.TimeLimit
	if tl <= 0 {
		tl = l.defaultTimeLimit
	}

	slog.DebugContext(ctx, "session: loaded", "questions", len(qs), "time_limit", tl)

	return &Ready{
		Questions: qs,
		Countdown: int((time.Duration(tl) * time.Minute).Seconds()),
	}, nil
}

func unavailable(reason string) *errors.Error {
	return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("%s", reason))
}
