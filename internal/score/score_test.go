package score_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/score"
)

func TestBuildSubmission(t *testing.T) {
	mcq := func(id, answer string) domain.Question {
		return domain.Question{
			QuestionID:   id,
			QuestionText: "question " + id,
			Body:         domain.MultipleChoice{Options: []string{"A", "B", "C", "X"}, Answer: answer},
		}
	}
	theory := func(id string) domain.Question {
		return domain.Question{
			QuestionID:   id,
			QuestionText: "question " + id,
			Body:         domain.FreeText{ModelAnswer: "model " + id},
		}
	}

	tests := map[string]struct {
		arrange func() score.BuildSubmissionRequest
		assert  func(t *testing.T, s domain.Submission)
	}{
		"two of three multiple choice answers correct": {
			arrange: func() score.BuildSubmissionRequest {
				return score.BuildSubmissionRequest{
					Questions: []domain.Question{mcq("1", "A"), mcq("2", "B"), mcq("3", "C")},
					Answers:   map[string]string{"1": "A", "2": "X", "3": "C"},
				}
			},
			assert: func(t *testing.T, s domain.Submission) {
				assert.Equal(t, 2, s.CorrectAnswers)
				assert.Equal(t, 3, s.TotalQuestions)
				assert.Equal(t, "66.67", s.ScorePercent)
			},
		},
		"unanswered multiple choice should be marked not answered and incorrect": {
			arrange: func() score.BuildSubmissionRequest {
				return score.BuildSubmissionRequest{
					Questions: []domain.Question{mcq("1", "A")},
					Answers:   map[string]string{},
				}
			},
			assert: func(t *testing.T, s domain.Submission) {
				require.Len(t, s.Answers, 1)
				assert.Equal(t, domain.NotAnswered, s.Answers[0].UserAnswer)
				require.NotNil(t, s.Answers[0].IsCorrect)
				assert.False(t, *s.Answers[0].IsCorrect)
				assert.Equal(t, "0.00", s.ScorePercent)
			},
		},
		"free text should be unscored but counted in the total": {
			arrange: func() score.BuildSubmissionRequest {
				return score.BuildSubmissionRequest{
					Questions: []domain.Question{mcq("1", "A"), theory("2")},
					Answers:   map[string]string{"1": "A", "2": "my essay"},
				}
			},
			assert: func(t *testing.T, s domain.Submission) {
				require.Len(t, s.Answers, 2)
				assert.Nil(t, s.Answers[1].IsCorrect)
				assert.Equal(t, "my essay", s.Answers[1].UserAnswer)
				assert.Equal(t, "model 2", s.Answers[1].CorrectAnswer)
				assert.Equal(t, domain.KindFreeText, s.Answers[1].Kind)
				assert.Equal(t, 1, s.CorrectAnswers)
				assert.Equal(t, "50.00", s.ScorePercent)
			},
		},
		"entries should follow question order and carry candidate": {
			arrange: func() score.BuildSubmissionRequest {
				return score.BuildSubmissionRequest{
					Candidate: domain.Candidate{FullName: "Ada", Email: "ada@example.com"},
					Questions: []domain.Question{theory("b"), theory("a"), mcq("c", "A")},
				}
			},
			assert: func(t *testing.T, s domain.Submission) {
				assert.Equal(t, "Ada", s.Name)
				assert.Equal(t, "ada@example.com", s.Email)
				ids := []string{}
				for _, e := range s.Answers {
					ids = append(ids, e.QuestionID)
				}
				assert.Equal(t, []string{"b", "a", "c"}, ids)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tt.assert(t, score.BuildSubmission(tt.arrange()))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "0.00", score.Percent(decimal.NewFromInt(1), 0))
	assert.Equal(t, "100.00", score.Percent(decimal.NewFromInt(4), 4))
	assert.Equal(t, "33.33", score.Percent(decimal.NewFromInt(1), 3))
	assert.Equal(t, "83.33", score.Percent(decimal.NewFromFloat(2.5), 3))
}
