package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/grading"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	id := clientID(c)
	if id == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("missing client ID")))
		return
	}

	tok, err := a.portal.AdminLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abort(c, err)
		return
	}

	if err := a.creds.SetAdminToken(c.Request.Context(), id, tok); err != nil {
		abort(c, err)
		return
	}

	noContent(c)
}

func (a *API) AdminLogout(c *gin.Context) {
	if id := clientID(c); id != "" {
		if err := a.creds.ClearAdminToken(c.Request.Context(), id); err != nil {
			abort(c, err)
			return
		}
	}

	noContent(c)
}

func (a *API) requireAdmin(c *gin.Context) {
	id := clientID(c)
	if id == "" {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing client ID")))
		return
	}

	ok, err := a.creds.HasAdminToken(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	if !ok {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("admin login required")))
		return
	}

	c.Next()
}

type TestControl struct {
	IsActive      bool `json:"isActive"`
	QuestionLimit int  `json:"questionLimit"`
	TimeLimit     int  `json:"timeLimit"`
}

func (a *API) GetTestControl(c *gin.Context) {
	tc, err := a.portal.GetTestControl(c.Request.Context(), a.creds.Provider(clientID(c)))
	if err != nil {
		abort(c, err)
		return
	}

	// No record yet reads as an inactive test.
	if tc == nil {
		tc = &domain.TestControl{}
	}

	c.JSON(http.StatusOK, TestControl{
		IsActive:      tc.Active,
		QuestionLimit: tc.QuestionLimit,
		TimeLimit:     tc.TimeLimit,
	})
}

type UpdateTestControlRequest struct {
	IsActive      *bool `json:"isActive"`
	QuestionLimit *int  `json:"questionLimit" binding:"omitempty,min=0"`
	TimeLimit     *int  `json:"timeLimit" binding:"omitempty,min=0"`
}

func (a *API) UpdateTestControl(c *gin.Context) {
	var req UpdateTestControlRequest
	if !bind(c, &req) {
		return
	}

	tc, err := a.portal.UpdateTestControl(c.Request.Context(), a.creds.Provider(clientID(c)), domain.TestControlUpdate{
		Active:        req.IsActive,
		QuestionLimit: req.QuestionLimit,
		TimeLimit:     req.TimeLimit,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, TestControl{
		IsActive:      tc.Active,
		QuestionLimit: tc.QuestionLimit,
		TimeLimit:     tc.TimeLimit,
	})
}

// Question is a bank question as edited by admins.
type Question struct {
	QuestionID    string   `json:"questionId,omitempty"`
	QuestionType  string   `json:"questionType"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

func fromQuestion(q domain.Question) Question {
	out := Question{
		QuestionID:    q.QuestionID,
		QuestionType:  string(q.Kind()),
		QuestionText:  q.QuestionText,
		CorrectAnswer: q.ReferenceAnswer(),
	}
	if mc, ok := q.Body.(domain.MultipleChoice); ok {
		out.Options = mc.Options
	}

	return out
}

// toDomain validates q: text is required, a multiple choice question needs options
// and its reference answer, when set, must be one of them.
func (q Question) toDomain() (domain.Question, error) {
	out := domain.Question{
		QuestionID:   q.QuestionID,
		QuestionText: strings.TrimSpace(q.QuestionText),
	}
	if out.QuestionText == "" {
		return out, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question text is required"))
	}

	switch {
	case strings.EqualFold(q.QuestionType, string(domain.KindMultipleChoice)):
		opts := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
		if len(opts) == 0 {
			return out, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("multiple choice question needs at least one option"))
		}

		answer := strings.TrimSpace(q.CorrectAnswer)
		if answer != "" && !contains(opts, answer) {
			return out, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("correct answer %q is not one of the options", answer))
		}
		out.Body = domain.MultipleChoice{Options: opts, Answer: answer}

	case strings.EqualFold(q.QuestionType, string(domain.KindFreeText)):
		out.Body = domain.FreeText{ModelAnswer: strings.TrimSpace(q.CorrectAnswer)}

	default:
		return out, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown question type %q", q.QuestionType))
	}

	return out, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}

	return false
}

func (a *API) ListQuestions(c *gin.Context) {
	qs, err := a.portal.ListQuestions(c.Request.Context(), a.creds.Provider(clientID(c)))
	if err != nil {
		abort(c, err)
		return
	}

	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		out = append(out, fromQuestion(q))
	}

	c.JSON(http.StatusOK, out)
}

func (a *API) CreateQuestion(c *gin.Context) {
	var req Question
	if !bind(c, &req) {
		return
	}

	q, err := req.toDomain()
	if err != nil {
		abort(c, err)
		return
	}
	q.QuestionID = ""

	created, err := a.portal.CreateQuestion(c.Request.Context(), a.creds.Provider(clientID(c)), q)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, fromQuestion(*created))
}

func (a *API) UpdateQuestion(c *gin.Context) {
	var req Question
	if !bind(c, &req) {
		return
	}

	q, err := req.toDomain()
	if err != nil {
		abort(c, err)
		return
	}
	q.QuestionID = c.Param("id")

	updated, err := a.portal.UpdateQuestion(c.Request.Context(), a.creds.Provider(clientID(c)), q)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, fromQuestion(*updated))
}

func (a *API) DeleteQuestion(c *gin.Context) {
	if err := a.portal.DeleteQuestion(c.Request.Context(), a.creds.Provider(clientID(c)), c.Param("id")); err != nil {
		abort(c, err)
		return
	}

	noContent(c)
}

func (a *API) UploadQuestions(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("missing file: %v", err)))
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, errors.Internal(err))
		return
	}
	defer f.Close()

	msg, err := a.portal.UploadQuestions(c.Request.Context(), a.creds.Provider(clientID(c)), fh.Filename, f)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type ResultSummary struct {
	ResultID       string    `json:"resultId"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Status         string    `json:"status"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	ScorePercent   string    `json:"scorePercent"`
	CreateTime     time.Time `json:"createTime"`
}

func fromResultSummary(r domain.ResultSummary) ResultSummary {
	return ResultSummary{
		ResultID:       r.ResultID,
		Name:           r.Name,
		Email:          r.Email,
		Status:         r.Status,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		ScorePercent:   r.ScorePercent,
		CreateTime:     r.CreateTime,
	}
}

func (a *API) ListResults(c *gin.Context) {
	rs, err := a.portal.ListResults(c.Request.Context(), a.creds.Provider(clientID(c)))
	if err != nil {
		abort(c, err)
		return
	}

	out := make([]ResultSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, fromResultSummary(r))
	}

	c.JSON(http.StatusOK, out)
}

type (
	Review struct {
		Result ResultSummary `json:"result"`
		Items  []ReviewItem  `json:"items"`
	}

	ReviewItem struct {
		Key             string `json:"key"`
		Question        string `json:"question"`
		Type            string `json:"type"`
		CandidateAnswer string `json:"candidateAnswer"`
		ModelAnswer     string `json:"modelAnswer"`
		IsCorrect       *bool  `json:"isCorrect"`
		Matched         bool   `json:"matched"`
	}
)

func (a *API) ReviewResult(c *gin.Context) {
	rv, err := a.grading.Review(c.Request.Context(), grading.ReviewRequest{
		ResultID:    c.Param("id"),
		Credentials: a.creds.Provider(clientID(c)),
	})
	if err != nil {
		abort(c, err)
		return
	}

	out := Review{
		Result: fromResultSummary(rv.Result),
		Items:  make([]ReviewItem, 0, len(rv.Items)),
	}
	for _, it := range rv.Items {
		out.Items = append(out.Items, ReviewItem{
			Key:             it.Key,
			Question:        it.Question,
			Type:            string(it.Kind),
			CandidateAnswer: it.CandidateAnswer,
			ModelAnswer:     it.ModelAnswer,
			IsCorrect:       it.IsCorrect,
			Matched:         it.Matched,
		})
	}

	c.JSON(http.StatusOK, out)
}

type (
	ValidateRequest struct {
		Marks map[string]decimal.Decimal `json:"marks" binding:"required"`
	}

	Validation struct {
		Marks        map[string]decimal.Decimal `json:"marks"`
		TotalMarks   decimal.Decimal            `json:"totalMarks"`
		ScorePercent string                     `json:"scorePercent"`
	}
)

func (a *API) ValidateResult(c *gin.Context) {
	var req ValidateRequest
	if !bind(c, &req) {
		return
	}

	v, err := a.grading.Validate(c.Request.Context(), grading.ValidateRequest{
		ResultID:    c.Param("id"),
		Credentials: a.creds.Provider(clientID(c)),
		Marks:       req.Marks,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Validation{
		Marks:        v.Marks,
		TotalMarks:   v.TotalMarks,
		ScorePercent: v.ScorePercent,
	})
}
