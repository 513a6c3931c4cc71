package apperr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPStatusByKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{Backend("dial", errors.New("refused")), http.StatusBadGateway},
		{BackendStatus(http.StatusServiceUnavailable, "body"), http.StatusBadGateway},
		{Transform("payload", nil), http.StatusInternalServerError},
		{Timeout(errors.New("deadline")), http.StatusGatewayTimeout},
		{InvalidRequest(errors.New("bad json")), http.StatusBadRequest},
		{RateLimited(), http.StatusTooManyRequests},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "for %v", tc.err)
	}
}

func TestWriteSanitizesDetail(t *testing.T) {
	t.Parallel()

	err := BackendStatus(http.StatusBadGateway, `{"secret":"raw upstream body"}`)

	w := httptest.NewRecorder()
	Write(w, zaptest.NewLogger(t), err)

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"error":{"message":"backend returned status 502","type":"backend_error"}}`,
		w.Body.String(),
	)
	assert.NotContains(t, w.Body.String(), "raw upstream body")
}

func TestWriteWrapsUnknownErrors(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	Write(w, zaptest.NewLogger(t), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"internal error"`)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	assert.True(t, errors.Is(Backend("send", cause), cause))
}
