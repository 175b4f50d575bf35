package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"github.com/victornm/quizportal/internal/credential"
	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
	"github.com/victornm/quizportal/internal/grading"
	"github.com/victornm/quizportal/internal/portal"
	"github.com/victornm/quizportal/internal/session"
	"github.com/victornm/quizportal/internal/telemetry"
)

type Sessions interface {
	StartSession(ctx context.Context, req session.StartSessionRequest) (*session.StartSessionResponse, error)
	GetSession(ctx context.Context, id string) (session.View, error)
	RecordAnswer(ctx context.Context, req session.RecordAnswerRequest) (session.View, error)
	Navigate(ctx context.Context, req session.NavigateRequest) (session.View, error)
	Submit(ctx context.Context, req session.SubmitRequest) (session.View, error)
	Hide(ctx context.Context, id string) (session.View, error)
}

// Portal is the part of the assessment API proxied for the admin dashboard.
type Portal interface {
	AdminLogin(ctx context.Context, username, password string) (string, error)
	GetTestControl(ctx context.Context, creds portal.CredentialProvider) (*domain.TestControl, error)
	UpdateTestControl(ctx context.Context, creds portal.CredentialProvider, u domain.TestControlUpdate) (*domain.TestControl, error)
	ListQuestions(ctx context.Context, creds portal.CredentialProvider) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, creds portal.CredentialProvider, q domain.Question) (*domain.Question, error)
	UpdateQuestion(ctx context.Context, creds portal.CredentialProvider, q domain.Question) (*domain.Question, error)
	DeleteQuestion(ctx context.Context, creds portal.CredentialProvider, id string) error
	UploadQuestions(ctx context.Context, creds portal.CredentialProvider, filename string, content io.Reader) (string, error)
	ListResults(ctx context.Context, creds portal.CredentialProvider) ([]domain.ResultSummary, error)
}

type Credentials interface {
	SetAdminToken(ctx context.Context, clientID, token string) error
	ClearAdminToken(ctx context.Context, clientID string) error
	HasAdminToken(ctx context.Context, clientID string) (bool, error)
	Provider(clientID string) credential.Provider
}

type Grading interface {
	Review(ctx context.Context, req grading.ReviewRequest) (*grading.Review, error)
	Validate(ctx context.Context, req grading.ValidateRequest) (*domain.Validation, error)
}

type Config struct {
	Router      gin.IRouter
	Session     Sessions
	Portal      Portal
	Credentials Credentials
	Grading     Grading
	// Limiter guards the routes that call the assessment API without a session, optional.
	Limiter gin.HandlerFunc
}

type API struct {
	sessions Sessions
	portal   Portal
	creds    Credentials
	grading  Grading
}

func New(c Config) *API {
	a := &API{
		sessions: c.Session,
		portal:   c.Portal,
		creds:    c.Credentials,
		grading:  c.Grading,
	}

	limit := c.Limiter
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	g := c.Router.Group("/api")

	s := g.Group("/sessions")
	s.POST("", limit, a.StartSession)
	s.GET("/:id", a.GetSession)
	s.PUT("/:id/answer", a.RecordAnswer)
	s.POST("/:id/next", a.navigate(true))
	s.POST("/:id/prev", a.navigate(false))
	s.POST("/:id/submit", a.Submit)
	s.POST("/:id/visibility", a.SetVisibility)

	ad := g.Group("/admin")
	ad.POST("/login", limit, a.AdminLogin)
	ad.POST("/logout", a.AdminLogout)

	auth := ad.Group("", a.requireAdmin)
	auth.GET("/testcontrol", a.GetTestControl)
	auth.PUT("/testcontrol", a.UpdateTestControl)
	auth.GET("/questions", a.ListQuestions)
	auth.POST("/questions", a.CreateQuestion)
	auth.PUT("/questions/:id", a.UpdateQuestion)
	auth.DELETE("/questions/:id", a.DeleteQuestion)
	auth.POST("/questions/upload", a.UploadQuestions)
	auth.GET("/results", a.ListResults)
	auth.GET("/results/:id/review", a.ReviewResult)
	auth.PUT("/results/:id/validate", a.ValidateResult)

	return a
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// abort renders err as {code, message} with the status its code maps to.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{
		Code:    codes.Code(e.Code).String(),
		Message: e.Message,
	})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body: %v", err)))
		return false
	}

	return true
}

func clientID(c *gin.Context) string {
	return c.GetHeader(telemetry.ClientIDHeader)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
