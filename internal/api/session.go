package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/session"
)

type (
	SessionView struct {
		SessionID        string        `json:"sessionId"`
		State            string        `json:"state"`
		Message          string        `json:"message,omitempty"`
		Index            int           `json:"index"`
		Total            int           `json:"total"`
		Question         *QuestionView `json:"question,omitempty"`
		Answer           string        `json:"answer,omitempty"`
		Answered         int           `json:"answered"`
		RemainingSeconds int           `json:"remainingSeconds"`
		Result           *ScoreView    `json:"result,omitempty"`
	}

	// QuestionView is a question as shown to candidates, it never carries the reference answer.
	QuestionView struct {
		QuestionID   string   `json:"questionId"`
		QuestionText string   `json:"questionText"`
		QuestionType string   `json:"questionType"`
		Options      []string `json:"options,omitempty"`
	}

	ScoreView struct {
		TotalQuestions int    `json:"totalQuestions"`
		CorrectAnswers int    `json:"correctAnswers"`
		ScorePercent   string `json:"scorePercent"`
		Saved          bool   `json:"saved"`
	}
)

func toSessionView(id string, v session.View) SessionView {
	out := SessionView{
		SessionID:        id,
		State:            v.State.String(),
		Message:          v.Message,
		Index:            v.Index,
		Total:            v.Total,
		Answer:           v.Answer,
		Answered:         v.Answered,
		RemainingSeconds: int(v.Remaining.Seconds()),
	}

	if q := v.Question; q != nil {
		qv := &QuestionView{
			QuestionID:   q.QuestionID,
			QuestionText: q.QuestionText,
			QuestionType: string(q.Kind()),
		}
		if mc, ok := q.Body.(domain.MultipleChoice); ok {
			qv.Options = mc.Options
		}
		out.Question = qv
	}

	if s := v.Submission; s != nil {
		out.Result = &ScoreView{
			TotalQuestions: s.TotalQuestions,
			CorrectAnswers: s.CorrectAnswers,
			ScorePercent:   s.ScorePercent,
			Saved:          v.State == session.StateCompleted,
		}
	}

	return out
}

type StartSessionRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (a *API) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if !bind(c, &req) {
		return
	}

	resp, err := a.sessions.StartSession(c.Request.Context(), session.StartSessionRequest{
		ClientID: clientID(c),
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionView(resp.SessionID, resp.View))
}

func (a *API) GetSession(c *gin.Context) {
	id := c.Param("id")

	v, err := a.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(id, v))
}

type RecordAnswerRequest struct {
	Answer string `json:"answer"`
}

func (a *API) RecordAnswer(c *gin.Context) {
	var req RecordAnswerRequest
	if !bind(c, &req) {
		return
	}

	id := c.Param("id")
	v, err := a.sessions.RecordAnswer(c.Request.Context(), session.RecordAnswerRequest{
		SessionID: id,
		Answer:    req.Answer,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(id, v))
}

func (a *API) navigate(forward bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		v, err := a.sessions.Navigate(c.Request.Context(), session.NavigateRequest{
			SessionID: id,
			Forward:   forward,
		})
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, toSessionView(id, v))
	}
}

type SubmitRequest struct {
	Confirm bool `json:"confirm"`
}

func (a *API) Submit(c *gin.Context) {
	var req SubmitRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	id := c.Param("id")
	v, err := a.sessions.Submit(c.Request.Context(), session.SubmitRequest{
		SessionID: id,
		Confirmed: req.Confirm,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(id, v))
}

type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// SetVisibility receives the page visibility changes of the candidate's tab.
// Only becoming hidden has an effect.
func (a *API) SetVisibility(c *gin.Context) {
	var req VisibilityRequest
	if !bind(c, &req) {
		return
	}

	id := c.Param("id")
	if !req.Hidden {
		a.GetSession(c)
		return
	}

	v, err := a.sessions.Hide(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(id, v))
}
