package grading

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/portal"
	"github.com/victornm/quizportal/internal/score"
)

const (
	noAnswer      = "No answer"
	noModelAnswer = "—"
)

var maxMark = decimal.NewFromInt(1)

type Portal interface {
	GetResult(ctx context.Context, creds portal.CredentialProvider, id string) (*domain.Result, error)
	ListQuestions(ctx context.Context, creds portal.CredentialProvider) ([]domain.Question, error)
	SaveValidation(ctx context.Context, creds portal.CredentialProvider, id string, v domain.Validation) error
}

type Config struct {
	Portal Portal
}

type Service struct {
	portal Portal
}

func NewService(c Config) *Service {
	return &Service{
		portal: c.Portal,
	}
}

type ReviewRequest struct {
	ResultID    string
	Credentials portal.CredentialProvider
}

// Review is a submitted result paired with the question bank.
type Review struct {
	Result domain.ResultSummary
	Items  []ReviewItem
}

type ReviewItem struct {
	// Key is what the mark of this answer is stored under: the question ID, or the
	// question text for results submitted without IDs.
	Key             string
	Question        string
	CandidateAnswer string
	ModelAnswer     string
	Kind            domain.Kind
	IsCorrect       *bool
	// Matched reports whether the answer was found in the current question bank.
	Matched bool
}

// Review fetches the result and then the question bank, and pairs every submitted
// answer with its bank question: by question ID when the answer has one, else by
// case-insensitive question text.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (*Review, error) {
	r, err := s.portal.GetResult(ctx, req.Credentials, req.ResultID)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	qs, err := s.portal.ListQuestions(ctx, req.Credentials)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	idx := newBankIndex(qs)
	rv := &Review{
		Result: r.ResultSummary,
		Items:  make([]ReviewItem, 0, len(r.Answers)),
	}

	for _, a := range r.Answers {
		item := ReviewItem{
			Key:             markKey(a),
			Question:        a.Question,
			CandidateAnswer: a.UserAnswer,
			ModelAnswer:     a.CorrectAnswer,
			Kind:            a.Kind,
			IsCorrect:       a.IsCorrect,
		}
		if item.CandidateAnswer == "" {
			item.CandidateAnswer = noAnswer
		}

		if q, ok := idx.match(a); ok {
			item.Matched = true
			if ref := q.ReferenceAnswer(); ref != "" {
				item.ModelAnswer = ref
			}
		}
		if item.ModelAnswer == "" {
			item.ModelAnswer = noModelAnswer
		}

		rv.Items = append(rv.Items, item)
	}

	return rv, nil
}

type ValidateRequest struct {
	ResultID    string
	Credentials portal.CredentialProvider
	Marks       map[string]decimal.Decimal
}

// Validate checks the marks against the result, computes total and percentage and saves them once.
// Every mark is within [0, 1]; the percentage is over all submitted answers.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*domain.Validation, error) {
	r, err := s.portal.GetResult(ctx, req.Credentials, req.ResultID)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	keys := make(map[string]bool, len(r.Answers))
	for _, a := range r.Answers {
		keys[markKey(a)] = true
	}

	v, err := Aggregate(req.Marks, len(r.Answers), keys)
	if err != nil {
		return nil, err
	}

	if err := s.portal.SaveValidation(ctx, req.Credentials, req.ResultID, *v); err != nil {
		return nil, fmt.Errorf("save validation: %w", err)
	}

	return v, nil
}

// Aggregate sums the marks: total = sum of marks, percentage = total / answers * 100
// with two decimals. Keys not in known are rejected when known is not nil.
func Aggregate(marks map[string]decimal.Decimal, answers int, known map[string]bool) (*domain.Validation, error) {
	total := decimal.Zero
	for _, k := range sortedKeys(marks) {
		m := marks[k]
		if known != nil && !known[k] {
			return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("mark for unknown question: %s", k))
		}
		if m.IsNegative() || m.GreaterThan(maxMark) {
			return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("mark for %s must be between 0 and 1, got %s", k, m))
		}
		total = total.Add(m)
	}

	return &domain.Validation{
		Marks:        marks,
		TotalMarks:   total,
		ScorePercent: score.Percent(total, answers),
	}, nil
}

func markKey(a domain.SubmissionEntry) string {
	if a.QuestionID != "" {
		return a.QuestionID
	}

	return a.Question
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

type bankIndex struct {
	byID   map[string]domain.Question
	byText map[string]domain.Question
}

func newBankIndex(qs []domain.Question) bankIndex {
	idx := bankIndex{
		byID:   make(map[string]domain.Question, len(qs)),
		byText: make(map[string]domain.Question, len(qs)),
	}

	for _, q := range qs {
		if q.QuestionID != "" {
			idx.byID[q.QuestionID] = q
		}
		// The first question wins when texts collide.
		if t := normalize(q.QuestionText); t != "" {
			if _, ok := idx.byText[t]; !ok {
				idx.byText[t] = q
			}
		}
	}

	return idx
}

func (idx bankIndex) match(a domain.SubmissionEntry) (domain.Question, bool) {
	if a.QuestionID != "" {
		if q, ok := idx.byID[a.QuestionID]; ok {
			return q, true
		}
	}

	q, ok := idx.byText[normalize(a.Question)]
	return q, ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
