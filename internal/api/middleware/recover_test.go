package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRecoverMiddleware(t *testing.T) {
	wrap := RecoverMiddleware(zap.NewNop())

	t.Run("panic before response", func(t *testing.T) {
		h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Body.String(), "internal-server-error")
	})

	t.Run("panic after response started", func(t *testing.T) {
		h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
			panic("late")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, `{"id":1}`, rr.Body.String())
	})

	t.Run("abort handler is re-raised", func(t *testing.T) {
		h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic(http.ErrAbortHandler) }))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
