package domain

import "time"

const (
	EventNameSessionStarted = "session.started"
	EventNameSessionEnded   = "session.ended"
)

// Outcome is how a candidate session ended.
type Outcome string

const (
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeLoadError    Outcome = "load_error"
	OutcomeAbandoned    Outcome = "abandoned"
	OutcomeCompleted    Outcome = "completed"
	OutcomeSubmitFailed Outcome = "submit_failed"
)

type SessionInfo struct {
	SessionID     string
	Candidate     Candidate
	QuestionCount int
	StartTime     time.Time
}

type EventSessionStarted struct {
	Session SessionInfo
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventSessionEnded struct {
	Session SessionInfo
	Outcome Outcome
	Reason  string
	// Submission is set for completed and submit_failed outcomes.
	Submission *Submission
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }
