package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotAnswered is recorded for every question the candidate left without an answer.
const NotAnswered = "Not answered"

// Kind is the question kind as named by the assessment API.
type Kind string

const (
	KindMultipleChoice Kind = "MCQ"
	KindFreeText       Kind = "Theory"
)

// Question represents one assessable item of the question bank.
type Question struct {
	QuestionID   string
	QuestionText string
	Body         QuestionBody
}

// Kind returns the kind of the question body, free text when the body is missing.
func (q Question) Kind() Kind {
	if q.Body == nil {
		return KindFreeText
	}

	return q.Body.Kind()
}

// ReferenceAnswer returns the answer used for auto-scoring or as a grading aid.
func (q Question) ReferenceAnswer() string {
	if q.Body == nil {
		return ""
	}

	return q.Body.ReferenceAnswer()
}

// QuestionBody is a closed set: MultipleChoice or FreeText.
type QuestionBody interface {
	Kind() Kind
	ReferenceAnswer() string

	isQuestionBody()
}

type MultipleChoice struct {
	Options []string
	Answer  string
}

func (MultipleChoice) Kind() Kind                { return KindMultipleChoice }
func (b MultipleChoice) ReferenceAnswer() string { return b.Answer }
func (MultipleChoice) isQuestionBody()           {}

type FreeText struct {
	ModelAnswer string
}

func (FreeText) Kind() Kind                { return KindFreeText }
func (b FreeText) ReferenceAnswer() string { return b.ModelAnswer }
func (FreeText) isQuestionBody()           {}

// TestControl is the admin-controlled record gating candidate sessions.
type TestControl struct {
	Active bool
	// QuestionLimit caps how many questions are drawn, zero means all.
	QuestionLimit int
	// TimeLimit in minutes.
	TimeLimit int
}

// TestControlUpdate is a partial update of TestControl, nil fields are left untouched.
type TestControlUpdate struct {
	Active        *bool
	QuestionLimit *int
	TimeLimit     *int
}

type Candidate struct {
	FullName string
	Email    string
	UserID   string
}

// Submission is the finalized result of a candidate session.
type Submission struct {
	Name           string
	Email          string
	Answers        []SubmissionEntry
	TotalQuestions int
	CorrectAnswers int
	// ScorePercent is the auto-scored percentage with two decimals, e.g. "66.67".
	ScorePercent string
}

type SubmissionEntry struct {
	QuestionID    string
	Question      string
	UserAnswer    string
	CorrectAnswer string
	// IsCorrect is nil for free text questions.
	IsCorrect *bool
	Kind      Kind
}

const (
	ResultStatusPending   = "Validation Pending"
	ResultStatusValidated = "Validated"
)

type ResultSummary struct {
	ResultID       string
	Name           string
	Email          string
	Status         string
	TotalQuestions int
	CorrectAnswers int
	ScorePercent   string
	CreateTime     time.Time
}

// Result is a stored submission as returned by the assessment API.
type Result struct {
	ResultSummary
	Answers []SubmissionEntry
}

// Validation is the admin's manual grading of a result.
type Validation struct {
	// Marks maps a question key (question ID or, for older results, question text) to a mark.
	Marks        map[string]decimal.Decimal
	TotalMarks   decimal.Decimal
	ScorePercent string
}
