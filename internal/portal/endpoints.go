package portal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/victornm/quizportal/internal/domain"
	"github.com/victornm/quizportal/internal/errors"
)

// GetTestControl returns the current test control, or nil when none has been created yet.
func (c *Client) GetTestControl(ctx context.Context, creds CredentialProvider) (*domain.TestControl, error) {
	var w *wireTestControl
	err := c.do(ctx, creds, request{op: "get test control", method: http.MethodGet, path: "/testcontrol"}, &w)
	if errors.HasCode(err, errors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if w == nil {
		return nil, nil
	}

	tc := w.toDomain()
	return &tc, nil
}

func (c *Client) UpdateTestControl(ctx context.Context, creds CredentialProvider, u domain.TestControlUpdate) (*domain.TestControl, error) {
	r, err := jsonRequest("update test control", http.MethodPut, "/testcontrol", wireTestControlUpdate{
		IsActive:      u.Active,
		QuestionLimit: u.QuestionLimit,
		TimeLimit:     u.TimeLimit,
	})
	if err != nil {
		return nil, err
	}

	var w *wireTestControl
	if err := c.do(ctx, creds, r, &w); err != nil {
		return nil, err
	}

	if w == nil {
		return nil, errors.New(errors.CodeInternal, errors.WithMessagef("update test control: empty response"))
	}

	tc := w.toDomain()
	return &tc, nil
}

// ListQuestions returns the whole question bank in the order the API returns it.
// An error embedded in an otherwise successful response is returned as FailedPrecondition
// carrying the server's message.
func (c *Client) ListQuestions(ctx context.Context, creds CredentialProvider) ([]domain.Question, error) {
	var l wireQuestionList
	if err := c.do(ctx, creds, request{op: "list questions", method: http.MethodGet, path: "/questions"}, &l); err != nil {
		return nil, err
	}

	if l.Error != "" {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("%s", l.Error))
	}

	qs := make([]domain.Question, 0, len(l.Questions))
	for _, w := range l.Questions {
		qs = append(qs, w.toDomain())
	}

	return qs, nil
}

func (c *Client) CreateQuestion(ctx context.Context, creds CredentialProvider, q domain.Question) (*domain.Question, error) {
	r, err := jsonRequest("create question", http.MethodPost, "/questions", fromDomainQuestion(q))
	if err != nil {
		return nil, err
	}

	return c.writeQuestion(ctx, creds, r, q)
}

func (c *Client) UpdateQuestion(ctx context.Context, creds CredentialProvider, q domain.Question) (*domain.Question, error) {
	r, err := jsonRequest("update question", http.MethodPut, "/questions/"+url.PathEscape(q.QuestionID), fromDomainQuestion(q))
	if err != nil {
		return nil, err
	}

	return c.writeQuestion(ctx, creds, r, q)
}

// writeQuestion sends r and returns the stored record, or q itself when the API acknowledges without a body.
func (c *Client) writeQuestion(ctx context.Context, creds CredentialProvider, r request, q domain.Question) (*domain.Question, error) {
	var w *wireQuestion
	if err := c.do(ctx, creds, r, &w); err != nil {
		return nil, err
	}

	if w == nil {
		return &q, nil
	}

	out := w.toDomain()
	if out.QuestionID == "" {
		out.QuestionID = q.QuestionID
	}

	return &out, nil
}

func (c *Client) DeleteQuestion(ctx context.Context, creds CredentialProvider, id string) error {
	return c.do(ctx, creds, request{op: "delete question", method: http.MethodDelete, path: "/questions/" + url.PathEscape(id)}, nil)
}

var uploadExtensions = map[string]bool{".txt": true, ".docx": true}

// UploadQuestions sends a .txt or .docx document for bulk import and returns the API's message.
func (c *Client) UploadQuestions(ctx context.Context, creds CredentialProvider, filename string, content io.Reader) (string, error) {
	if !uploadExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unsupported file type %q, expected .txt or .docx", filepath.Ext(filename)))
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("portal: upload questions: create form file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return "", fmt.Errorf("portal: upload questions: copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("portal: upload questions: close multipart: %w", err)
	}

	var resp struct {
		Message string `json:"message"`
	}
	r := request{
		op:          "upload questions",
		method:      http.MethodPost,
		path:        "/questions/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}
	if err := c.do(ctx, creds, r, &resp); err != nil {
		return "", err
	}

	return resp.Message, nil
}

// RegisterCandidate registers the candidate and returns its user ID, plus a user token when the API issues one.
func (c *Client) RegisterCandidate(ctx context.Context, creds CredentialProvider, fullName, email string) (userID, token string, err error) {
	r, err := jsonRequest("register candidate", http.MethodPost, "/user/register", map[string]string{
		"fullName": fullName,
		"email":    email,
	})
	if err != nil {
		return "", "", err
	}

	var resp struct {
		UserID string `json:"userId"`
		Token  string `json:"token"`
	}
	if err := c.do(ctx, creds, r, &resp); err != nil {
		return "", "", err
	}

	return resp.UserID, resp.Token, nil
}

func (c *Client) SubmitResult(ctx context.Context, creds CredentialProvider, s domain.Submission) error {
	r, err := jsonRequest("submit result", http.MethodPost, "/tests", fromDomainSubmission(s))
	if err != nil {
		return err
	}

	return c.do(ctx, creds, r, nil)
}

func (c *Client) ListResults(ctx context.Context, creds CredentialProvider) ([]domain.ResultSummary, error) {
	var ws []wireResult
	if err := c.do(ctx, creds, request{op: "list results", method: http.MethodGet, path: "/tests"}, &ws); err != nil {
		return nil, err
	}

	out := make([]domain.ResultSummary, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.summary())
	}

	return out, nil
}

func (c *Client) GetResult(ctx context.Context, creds CredentialProvider, id string) (*domain.Result, error) {
	var w *wireResult
	if err := c.do(ctx, creds, request{op: "get result", method: http.MethodGet, path: "/tests/" + url.PathEscape(id)}, &w); err != nil {
		return nil, err
	}

	if w == nil {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("result not found: id=%s", id))
	}

	r := w.toDomain()
	if r.ResultID == "" {
		r.ResultID = id
	}

	return &r, nil
}

func (c *Client) SaveValidation(ctx context.Context, creds CredentialProvider, id string, v domain.Validation) error {
	r, err := jsonRequest("save validation", http.MethodPut, "/tests/"+url.PathEscape(id)+"/validate", fromDomainValidation(v))
	if err != nil {
		return err
	}

	return c.do(ctx, creds, r, nil)
}

// AdminLogin exchanges admin credentials for a token.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (string, error) {
	r, err := jsonRequest("admin login", http.MethodPost, "/admin/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, nil, r, &resp); err != nil {
		return "", err
	}

	if resp.Token == "" {
		return "", errors.New(errors.CodeUnauthenticated, errors.WithMessagef("admin login: no token issued"))
	}

	return resp.Token, nil
}
