package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"go.uber.org/zap"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.shlapabank.dev/"

// Details represents RFC 7807 Problem Details. Code carries the stable
// engine error code when there is one.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	write(w, r, Details{Type: problemType, Title: title, Status: status, Detail: detail})
}

// Error writes err as a problem. Engine rejections keep their code; anything
// else is logged and reported as an internal error.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		fields := []zap.Field{zap.Error(err)}
		if r != nil {
			fields = append(fields, zap.String("path", r.URL.Path), zap.String("method", r.Method))
		}
		zap.L().Error("request failed", fields...)
		Write(w, r, http.StatusInternalServerError, Type("internal-server-error"), "", "unexpected server error")
		return
	}
	status := StatusFor(de)
	if de.Code == domain.ErrConcurrencyConflict.Code {
		w.Header().Set("Retry-After", "1")
	}
	write(w, r, Details{
		Type:   Type("errors/" + de.Code),
		Status: status,
		Detail: de.Code,
		Code:   de.Code,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(de *domain.Error) int {
	switch de.Kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindAuth:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindBusiness:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, r *http.Request, d Details) {
	if d.Title == "" {
		d.Title = http.StatusText(d.Status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get("X-Trace-ID")
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
