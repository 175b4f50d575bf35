package score

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/quizportal/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Percent returns part / total * 100 with exactly two decimals, "0.00" when total is not positive.
func Percent(part decimal.Decimal, total int) string {
	if total <= 0 {
		return decimal.Zero.StringFixed(2)
	}

	return part.Mul(hundred).Div(decimal.NewFromInt(int64(total))).StringFixed(2)
}

type BuildSubmissionRequest struct {
	Candidate domain.Candidate
	// Questions in the order they were presented.
	Questions []domain.Question
	// Answers maps question ID to the recorded answer.
	Answers map[string]string
}

// BuildSubmission scores the recorded answers. Only multiple choice questions are
// auto-scored; free text questions count in the total but are left for manual grading.
func BuildSubmission(req BuildSubmissionRequest) domain.Submission {
	s := domain.Submission{
		Name:           req.Candidate.FullName,
		Email:          req.Candidate.Email,
		Answers:        make([]domain.SubmissionEntry, 0, len(req.Questions)),
		TotalQuestions: len(req.Questions),
	}

	for _, q := range req.Questions {
		answer, answered := req.Answers[q.QuestionID]
		if answer == "" {
			answered = false
		}

		e := domain.SubmissionEntry{
			QuestionID:    q.QuestionID,
			Question:      q.QuestionText,
			UserAnswer:    domain.NotAnswered,
			CorrectAnswer: q.ReferenceAnswer(),
			Kind:          q.Kind(),
		}
		if answered {
			e.UserAnswer = answer
		}

		switch b := q.Body.(type) {
		case domain.MultipleChoice:
			correct := answered && answer == b.Answer
			e.IsCorrect = &correct
			if correct {
				s.CorrectAnswers++
			}
		case domain.FreeText, nil:
			e.IsCorrect = nil
		}

		s.Answers = append(s.Answers, e)
	}

	s.ScorePercent = Percent(decimal.NewFromInt(int64(s.CorrectAnswers)), s.TotalQuestions)

	return s
}
