package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/victornm/quizportal/internal/errors"
)

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		err      error
		wantCode errors.Code
		wantHTTP int
	}{
		"plain error should become internal": {
			err:      stderrors.New("boom"),
			wantCode: errors.CodeInternal,
			wantHTTP: http.StatusInternalServerError,
		},
		"wrapped coded error should keep its code": {
			err:      fmt.Errorf("load: %w", errors.New(errors.CodeNotFound)),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
		},
		"failed precondition should map to conflict": {
			err:      errors.New(errors.CodeFailedPrecondition),
			wantCode: errors.CodeFailedPrecondition,
			wantHTTP: http.StatusConflict,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHTTP, e.HTTPStatusCode())
			assert.Equal(t, codes.Code(tt.wantCode), e.GRPCStatus().Code())
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	assert.Equal(t, errors.CodeUnauthenticated, errors.FromHTTPStatus(http.StatusUnauthorized).Code)
	assert.Equal(t, errors.CodeInvalidArgument, errors.FromHTTPStatus(http.StatusUnprocessableEntity).Code)
	assert.Equal(t, errors.CodeInternal, errors.FromHTTPStatus(http.StatusNotImplemented).Code)
}

func TestError_Is(t *testing.T) {
	sentinel := errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("confirmation required"))

	err := fmt.Errorf("submit: %w", errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("confirmation required")))
	assert.ErrorIs(t, err, sentinel)

	other := errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session is not active"))
	assert.NotErrorIs(t, other, sentinel)
	assert.True(t, errors.HasCode(other, errors.CodeFailedPrecondition))
}
