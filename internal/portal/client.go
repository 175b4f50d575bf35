// Package portal is a client of the assessment API that owns questions,
// test control, results and admin credentials.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/victornm/quizportal/internal/errors"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

// CredentialProvider supplies the token attached to every request.
// An empty token omits the Authorization header.
type CredentialProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Observer is notified after every remote call.
type Observer interface {
	ObserveCall(op string, d time.Duration, err error)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
}

type Client struct {
	baseURL string
	hc      *http.Client
	obs     Observer
}

func New(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(c.BaseURL, "/"),
		hc:      hc,
		obs:     c.Observer,
	}
}

type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(op, method, path string, payload any) (request, error) {
	r := request{op: op, method: method, path: path}
	if payload == nil {
		return r, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return r, fmt.Errorf("portal: %s: marshal request: %w", op, err)
	}
	r.body = bytes.NewReader(b)
	r.contentType = "application/json"

	return r, nil
}

// do sends the request and decodes a 2xx body into out. Empty and null bodies leave out untouched.
func (c *Client) do(ctx context.Context, creds CredentialProvider, r request, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.obs != nil {
			c.obs.ObserveCall(r.op, time.Since(start), err)
		}
	}()

	raw, err := c.send(ctx, creds, r)
	if err != nil {
		return err
	}

	if out == nil || isEmptyBody(raw) {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New(errors.CodeInternal,
			errors.WithMessagef("%s: malformed response", r.op),
			errors.WithCause(err),
		)
	}

	return nil
}

func (c *Client) send(ctx context.Context, creds CredentialProvider, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("portal: %s: new request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	if creds != nil {
		token, err := creds.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("portal: %s: get token: %w", r.op, err)
		}
		if token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "portal: request failed", "op", r.op, "error", err)
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("%s: %v", r.op, err),
			errors.WithCause(err),
		)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("%s: read response: %v", r.op, err),
			errors.WithCause(err),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.FromHTTPStatus(resp.StatusCode,
			errors.WithMessagef("%s", remoteMessage(r.op, resp.StatusCode, raw)),
		)
	}

	return raw, nil
}

// remoteMessage extracts the {"error"} or {"message"} text the API puts in failed responses.
func remoteMessage(op string, status int, raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	switch {
	case body.Error != "":
		return body.Error
	case body.Message != "":
		return body.Message
	default:
		return fmt.Sprintf("%s: unexpected status %d", op, status)
	}
}

func isEmptyBody(raw []byte) bool {
	s := bytes.TrimSpace(raw)
	return len(s) == 0 || bytes.Equal(s, []byte("null"))
}
