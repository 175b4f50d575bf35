package grading_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/grading"
	"github.com/victornm/quizportal/internal/portal"
)

type fakePortal struct {
	result    *domain.Result
	resultErr error
	questions []domain.Question
	saveErr   error

	calls []string
	saved []domain.Validation
}

func (p *fakePortal) GetResult(_ context.Context, _ portal.CredentialProvider, id string) (*domain.Result, error) {
	p.calls = append(p.calls, "result:"+id)
	return p.result, p.resultErr
}

func (p *fakePortal) ListQuestions(context.Context, portal.CredentialProvider) ([]domain.Question, error) {
	p.calls = append(p.calls, "questions")
	return p.questions, nil
}

func (p *fakePortal) SaveValidation(_ context.Context, _ portal.CredentialProvider, id string, v domain.Validation) error {
	p.calls = append(p.calls, "save:"+id)
	p.saved = append(p.saved, v)
	return p.saveErr
}

func newResult(answers ...domain.SubmissionEntry) *domain.Result {
	return &domain.Result{
		ResultSummary: domain.ResultSummary{
			ResultID: "r1",
			Name:     "Ada",
			Email:    "ada@example.com",
			Status:   domain.ResultStatusPending,
		},
		Answers: answers,
	}
}

func TestService_Review(t *testing.T) {
	p := &fakePortal{
		result: newResult(
			domain.SubmissionEntry{QuestionID: "q1", Question: "renamed in bank", UserAnswer: "B"},
			domain.SubmissionEntry{Question: "  Explain GOROUTINES ", UserAnswer: "threads", Kind: domain.KindFreeText},
			domain.SubmissionEntry{Question: "deleted question", UserAnswer: "", CorrectAnswer: "kept"},
			domain.SubmissionEntry{Question: "orphan"},
		),
		questions: []domain.Question{
			{QuestionID: "q1", QuestionText: "pick one", Body: domain.MultipleChoice{Options: []string{"A", "B"}, Answer: "A"}},
			{QuestionID: "q2", QuestionText: "explain goroutines", Body: domain.FreeText{ModelAnswer: "green threads"}},
		},
	}
	s := grading.NewService(grading.Config{Portal: p})

	rv, err := s.Review(context.Background(), grading.ReviewRequest{ResultID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"result:r1", "questions"}, p.calls, "result first, then the bank")
	assert.Equal(t, "Ada", rv.Result.Name)
	require.Len(t, rv.Items, 4)

	assert.Equal(t, "q1", rv.Items[0].Key)
	assert.True(t, rv.Items[0].Matched, "matched by id")
	assert.Equal(t, "A", rv.Items[0].ModelAnswer)

	assert.Equal(t, "  Explain GOROUTINES ", rv.Items[1].Key)
	assert.True(t, rv.Items[1].Matched, "matched by trimmed case-insensitive text")
	assert.Equal(t, "green threads", rv.Items[1].ModelAnswer)
	assert.Equal(t, "threads", rv.Items[1].CandidateAnswer)

	assert.False(t, rv.Items[2].Matched)
	assert.Equal(t, "No answer", rv.Items[2].CandidateAnswer)
	assert.Equal(t, "kept", rv.Items[2].ModelAnswer, "stored reference answer is used when the bank has none")

	assert.Equal(t, "—", rv.Items[3].ModelAnswer)
}

func TestService_Review_ResultError(t *testing.T) {
	p := &fakePortal{resultErr: errors.New(errors.CodeNotFound)}
	s := grading.NewService(grading.Config{Portal: p})

	_, err := s.Review(context.Background(), grading.ReviewRequest{ResultID: "r1"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	assert.Equal(t, []string{"result:r1"}, p.calls)
}

func TestService_Validate(t *testing.T) {
	d := decimal.RequireFromString

	tests := map[string]struct {
		result *domain.Result
		marks  map[string]decimal.Decimal
		assert func(t *testing.T, p *fakePortal, v *domain.Validation, err error)
	}{
		"marks should be summed and saved once": {
			result: newResult(
				domain.SubmissionEntry{QuestionID: "q1"},
				domain.SubmissionEntry{QuestionID: "q2"},
				domain.SubmissionEntry{Question: "text only"},
			),
			marks: map[string]decimal.Decimal{"q1": d("1"), "q2": d("0.5"), "text only": d("1")},
			assert: func(t *testing.T, p *fakePortal, v *domain.Validation, err error) {
				require.NoError(t, err)
				assert.Equal(t, "2.5", v.TotalMarks.String())
				assert.Equal(t, "83.33", v.ScorePercent)
				require.Len(t, p.saved, 1)
				assert.Equal(t, *v, p.saved[0])
			},
		},
		"missing marks should count as zero": {
			result: newResult(domain.SubmissionEntry{QuestionID: "q1"}, domain.SubmissionEntry{QuestionID: "q2"}),
			marks:  map[string]decimal.Decimal{"q1": d("1")},
			assert: func(t *testing.T, p *fakePortal, v *domain.Validation, err error) {
				require.NoError(t, err)
				assert.Equal(t, "50.00", v.ScorePercent)
			},
		},
		"result without answers should score zero": {
			result: newResult(),
			assert: func(t *testing.T, p *fakePortal, v *domain.Validation, err error) {
				require.NoError(t, err)
				assert.True(t, v.TotalMarks.IsZero())
				assert.Equal(t, "0.00", v.ScorePercent)
			},
		},
		"mark above one should be rejected": {
			result: newResult(domain.SubmissionEntry{QuestionID: "q1"}),
			marks:  map[string]decimal.Decimal{"q1": d("1.5")},
			assert: func(t *testing.T, p *fakePortal, v *domain.Validation, err error) {
				assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)
				assert.Empty(t, p.saved)
			},
		},
		"negative mark should be rejected": {
			result: newResult(domain.SubmissionEntry{QuestionID: "q1"}),
			marks:  map[string]decimal.Decimal{"q1": d("-0.1")},
			assert: func(t *testing.T, p *fakePortal, v *domain.Validation, err error) {
				assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)
				assert.Empty(t, p.saved)
			},
		},
		"unknown question should be rejected": {
			result: newResult(domain.SubmissionEntry{QuestionID: "q1"}),
			marks:  map[string]decimal.Decimal{"q9": d("1")},
			assert: func(t *testing.T, p *fakePortal, v *domain.Validation, err error) {
				assert.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)
				assert.Empty(t, p.saved)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := &fakePortal{result: tt.result}
			s := grading.NewService(grading.Config{Portal: p})

			v, err := s.Validate(context.Background(), grading.ValidateRequest{ResultID: "r1", Marks: tt.marks})
			tt.assert(t, p, v, err)
		})
	}
}

func TestService_Validate_SaveFailure(t *testing.T) {
	p := &fakePortal{
		result:  newResult(domain.SubmissionEntry{QuestionID: "q1"}),
		saveErr: errors.New(errors.CodeUnavailable),
	}
	s := grading.NewService(grading.Config{Portal: p})

	_, err := s.Validate(context.Background(), grading.ValidateRequest{
		ResultID: "r1",
		Marks:    map[string]decimal.Decimal{"q1": decimal.NewFromInt(1)},
	})
	assert.True(t, errors.HasCode(err, errors.CodeUnavailable))
	assert.Len(t, p.saved, 1, "no retry")
}
