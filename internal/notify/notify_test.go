package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/event"
	"github.com/victornm/quizportal/internal/notify"
)

var session = domain.SessionInfo{
	SessionID:     "s1",
	Candidate:     domain.Candidate{FullName: "Ada", Email: "ada@example.com", UserID: "u1"},
	QuestionCount: 3,
	StartTime:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

func makePublisher(t *testing.T) (*notify.Publisher, *event.Bus, redis.UniversalClient) {
	s := miniredis.RunT(t)
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	t.Cleanup(func() { _ = rdb.Close() })

	eb := event.NewBus()
	return notify.NewPublisher(notify.Config{EventBus: eb, Redis: rdb, Prefix: "quizportal"}), eb, rdb
}

func subscribe(t *testing.T, rdb redis.UniversalClient, channels ...string) *redis.PubSub {
	sub := rdb.Subscribe(context.Background(), channels...)
	t.Cleanup(func() { _ = sub.Close() })

	for range channels {
		_, err := sub.Receive(context.Background())
		require.NoError(t, err)
	}

	return sub
}

func receive(t *testing.T, sub *redis.PubSub) (string, map[string]any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var n struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))

	return msg.Channel + " " + n.Event, n.Data
}

func TestPublisher_Channels(t *testing.T) {
	p, _, _ := makePublisher(t)

	assert.Equal(t, "quizportal:sessions", p.SessionsChannel())
	assert.Equal(t, "quizportal:session:s1", p.SessionChannel("s1"))
}

func TestPublisher_PublishSessionStarted(t *testing.T) {
	p, _, rdb := makePublisher(t)
	sub := subscribe(t, rdb, "quizportal:sessions")

	require.NoError(t, p.PublishSessionStarted(context.Background(), domain.EventSessionStarted{Session: session}))

	got, data := receive(t, sub)
	assert.Equal(t, "quizportal:sessions session.started", got)
	assert.Equal(t, "s1", data["sessionId"])
	assert.Equal(t, "Ada", data["fullName"])
	assert.Equal(t, float64(3), data["questionCount"])
	assert.Equal(t, "2024-01-02T03:04:05Z", data["startTime"])
}

func TestPublisher_SessionEndedFromBus(t *testing.T) {
	tests := map[string]struct {
		event  domain.EventSessionEnded
		assert func(t *testing.T, data map[string]any)
	}{
		"completed should carry the score": {
			event: domain.EventSessionEnded{
				Session: session,
				Outcome: domain.OutcomeCompleted,
				Submission: &domain.Submission{
					TotalQuestions: 3,
					CorrectAnswers: 2,
					ScorePercent:   "66.67",
				},
			},
			assert: func(t *testing.T, data map[string]any) {
				assert.Equal(t, "completed", data["outcome"])
				assert.Equal(t, "66.67", data["scorePercent"])
				assert.Equal(t, float64(2), data["correctAnswers"])
			},
		},
		"abandoned should carry no score": {
			event: domain.EventSessionEnded{
				Session: session,
				Outcome: domain.OutcomeAbandoned,
				Reason:  "tab hidden",
			},
			assert: func(t *testing.T, data map[string]any) {
				assert.Equal(t, "abandoned", data["outcome"])
				assert.Equal(t, "tab hidden", data["reason"])
				assert.NotContains(t, data, "scorePercent")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, eb, rdb := makePublisher(t)
			sub := subscribe(t, rdb, "quizportal:session:s1")

			eb.Publish(context.Background(), tt.event)
			eb.Stop()

			got, data := receive(t, sub)
			assert.Equal(t, "quizportal:session:s1 session.ended", got)
			tt.assert(t, data)
		})
	}
}

func TestPublisher_RedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	t.Cleanup(func() { _ = rdb.Close() })
	p := notify.NewPublisher(notify.Config{EventBus: event.NewBus(), Redis: rdb, Prefix: "quizportal"})

	s.Close()

	err := p.PublishSessionStarted(context.Background(), domain.EventSessionStarted{Session: session})
	assert.Error(t, err)
}
