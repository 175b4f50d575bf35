package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/event"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Session struct {
		SessionID     string    `json:"sessionId"`
		FullName      string    `json:"fullName"`
		Email         string    `json:"email"`
		UserID        string    `json:"userId,omitempty"`
		QuestionCount int       `json:"questionCount"`
		StartTime     time.Time `json:"startTime"`
	}

	SessionEnded struct {
		Session
		Outcome        domain.Outcome `json:"outcome"`
		Reason         string         `json:"reason,omitempty"`
		TotalQuestions int            `json:"totalQuestions,omitempty"`
		CorrectAnswers int            `json:"correctAnswers,omitempty"`
		ScorePercent   string         `json:"scorePercent,omitempty"`
	}
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Publisher forwards session lifecycle events to redis pub/sub.
type Publisher struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPublisher(c Config) *Publisher {
	p := &Publisher{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	c.EventBus.Subscribe(domain.EventNameSessionStarted, "notify", func(ctx context.Context, e event.Event) error {
		return p.PublishSessionStarted(ctx, e.(domain.EventSessionStarted))
	})
	c.EventBus.Subscribe(domain.EventNameSessionEnded, "notify", func(ctx context.Context, e event.Event) error {
		return p.PublishSessionEnded(ctx, e.(domain.EventSessionEnded))
	})

	return p
}

func (p *Publisher) PublishSessionStarted(ctx context.Context, e domain.EventSessionStarted) error {
	return p.publish(ctx, e.Session.SessionID, e.Name(), toSession(e.Session))
}

func (p *Publisher) PublishSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	data := SessionEnded{
		Session: toSession(e.Session),
		Outcome: e.Outcome,
		Reason:  e.Reason,
	}
	if s := e.Submission; s != nil {
		data.TotalQuestions = s.TotalQuestions
		data.CorrectAnswers = s.CorrectAnswers
		data.ScorePercent = s.ScorePercent
	}

	return p.publish(ctx, e.Session.SessionID, e.Name(), data)
}

// SessionsChannel carries the events of every session.
func (p *Publisher) SessionsChannel() string {
	return fmt.Sprintf("%s:sessions", p.prefix)
}

// SessionChannel carries the events of one session.
func (p *Publisher) SessionChannel(id string) string {
	return fmt.Sprintf("%s:session:%s", p.prefix, id)
}

func (p *Publisher) publish(ctx context.Context, sessionID, event string, data any) error {
	b, err := json.Marshal(Notification{
		Event: event,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %v", event, err)
	}

	var eg errgroup.Group
	for _, ch := range []string{p.SessionsChannel(), p.SessionChannel(sessionID)} {
		eg.Go(func() error {
			if err := p.redis.Publish(ctx, ch, b).Err(); err != nil {
				return fmt.Errorf("notify: publish %s to %s: %w", event, ch, err)
			}
			return nil
		})
	}

	return eg.Wait()
}

func toSession(s domain.SessionInfo) Session {
	return Session{
		SessionID:     s.SessionID,
		FullName:      s.Candidate.FullName,
		Email:         s.Candidate.Email,
		UserID:        s.Candidate.UserID,
		QuestionCount: s.QuestionCount,
		StartTime:     s.StartTime,
	}
}
