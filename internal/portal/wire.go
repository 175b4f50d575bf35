package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizportal/internal/domain"
)

// flexInt decodes numbers sent either as JSON numbers or as numeric strings,
// the admin dashboard stores form values as strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		b = []byte(s)
	}

	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("flexInt: %w", err)
	}
	*n = flexInt(f)

	return nil
}

// flexString decodes a percentage sent either as "66.67" or 66.67.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}

	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("flexString: %w", err)
	}
	*s = flexString(d.StringFixed(2))

	return nil
}

type wireTestControl struct {
	IsActive      *bool    `json:"isActive,omitempty"`
	Active        *bool    `json:"active,omitempty"`
	QuestionLimit *flexInt `json:"questionLimit,omitempty"`
	TimeLimit     *flexInt `json:"timeLimit,omitempty"`
}

func (w wireTestControl) toDomain() domain.TestControl {
	var tc domain.TestControl
	switch {
	case w.IsActive != nil:
		tc.Active = *w.IsActive
	case w.Active != nil:
		tc.Active = *w.Active
	}
	if w.QuestionLimit != nil {
		tc.QuestionLimit = int(*w.QuestionLimit)
	}
	if w.TimeLimit != nil {
		tc.TimeLimit = int(*w.TimeLimit)
	}

	return tc
}

type wireTestControlUpdate struct {
	IsActive      *bool `json:"isActive,omitempty"`
	QuestionLimit *int  `json:"questionLimit,omitempty"`
	TimeLimit     *int  `json:"timeLimit,omitempty"`
}

type wireQuestion struct {
	ID            string   `json:"_id,omitempty"`
	QuestionType  string   `json:"questionType"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
}

func (w wireQuestion) toDomain() domain.Question {
	q := domain.Question{
		QuestionID:   w.ID,
		QuestionText: w.QuestionText,
	}

	if strings.EqualFold(w.QuestionType, string(domain.KindMultipleChoice)) {
		q.Body = domain.MultipleChoice{Options: w.Options, Answer: w.CorrectAnswer}
	} else {
		q.Body = domain.FreeText{ModelAnswer: w.CorrectAnswer}
	}

	return q
}

func fromDomainQuestion(q domain.Question) wireQuestion {
	w := wireQuestion{
		QuestionType:  string(q.Kind()),
		QuestionText:  q.QuestionText,
		CorrectAnswer: q.ReferenceAnswer(),
	}

	if mc, ok := q.Body.(domain.MultipleChoice); ok {
		w.Options = mc.Options
	}

	return w
}

// wireQuestionList is the GET /questions response: a bare array, {questions: [...]} or {error}.
type wireQuestionList struct {
	Questions []wireQuestion
	Error     string
}

func (l *wireQuestionList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &l.Questions)
	}

	var obj struct {
		Questions []wireQuestion `json:"questions"`
		Error     string         `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.Questions, l.Error = obj.Questions, obj.Error

	return nil
}

type wireAnswer struct {
	QuestionID    string `json:"questionId,omitempty"`
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     *bool  `json:"isCorrect"`
	Type          string `json:"type"`
}

func fromDomainEntry(e domain.SubmissionEntry) wireAnswer {
	return wireAnswer{
		QuestionID:    e.QuestionID,
		Question:      e.Question,
		UserAnswer:    e.UserAnswer,
		CorrectAnswer: e.CorrectAnswer,
		IsCorrect:     e.IsCorrect,
		Type:          string(e.Kind),
	}
}

func (w wireAnswer) toDomain() domain.SubmissionEntry {
	kind := domain.KindFreeText
	if strings.EqualFold(w.Type, string(domain.KindMultipleChoice)) {
		kind = domain.KindMultipleChoice
	}

	return domain.SubmissionEntry{
		QuestionID:    w.QuestionID,
		Question:      w.Question,
		UserAnswer:    w.UserAnswer,
		CorrectAnswer: w.CorrectAnswer,
		IsCorrect:     w.IsCorrect,
		Kind:          kind,
	}
}

type wireSubmission struct {
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Answers        []wireAnswer `json:"answers"`
	TotalQuestions int          `json:"totalQuestions"`
	CorrectAnswers int          `json:"correctAnswers"`
	ScorePercent   string       `json:"scorePercent"`
}

func fromDomainSubmission(s domain.Submission) wireSubmission {
	w := wireSubmission{
		Name:           s.Name,
		Email:          s.Email,
		Answers:        make([]wireAnswer, 0, len(s.Answers)),
		TotalQuestions: s.TotalQuestions,
		CorrectAnswers: s.CorrectAnswers,
		ScorePercent:   s.ScorePercent,
	}

	for _, e := range s.Answers {
		w.Answers = append(w.Answers, fromDomainEntry(e))
	}

	return w
}

type wireResult struct {
	ID               string       `json:"_id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	Status           string       `json:"status"`
	Answers          []wireAnswer `json:"answers"`
	SubmittedAnswers []wireAnswer `json:"submittedAnswers"`
	TotalQuestions   flexInt      `json:"totalQuestions"`
	CorrectAnswers   flexInt      `json:"correctAnswers"`
	ScorePercent     flexString   `json:"scorePercent"`
	CreatedAt        time.Time    `json:"createdAt"`
}

func (w wireResult) summary() domain.ResultSummary {
	status := w.Status
	if status == "" {
		status = domain.ResultStatusPending
	}

	return domain.ResultSummary{
		ResultID:       w.ID,
		Name:           w.Name,
		Email:          w.Email,
		Status:         status,
		TotalQuestions: int(w.TotalQuestions),
		CorrectAnswers: int(w.CorrectAnswers),
		ScorePercent:   string(w.ScorePercent),
		CreateTime:     w.CreatedAt,
	}
}

// toDomain prefers submittedAnswers, older results only carry answers.
func (w wireResult) toDomain() domain.Result {
	src := w.SubmittedAnswers
	if len(src) == 0 {
		src = w.Answers
	}

	r := domain.Result{
		ResultSummary: w.summary(),
		Answers:       make([]domain.SubmissionEntry, 0, len(src)),
	}
	for _, a := range src {
		r.Answers = append(r.Answers, a.toDomain())
	}

	return r
}

type wireValidation struct {
	Marks        map[string]float64 `json:"marks"`
	TotalMarks   float64            `json:"totalMarks"`
	ScorePercent string             `json:"scorePercent"`
}

func fromDomainValidation(v domain.Validation) wireValidation {
	w := wireValidation{
		Marks:        make(map[string]float64, len(v.Marks)),
		TotalMarks:   v.TotalMarks.InexactFloat64(),
		ScorePercent: v.ScorePercent,
	}
	for k, m := range v.Marks {
		w.Marks[k] = m.InexactFloat64()
	}

	return w
}
