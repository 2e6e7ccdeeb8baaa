package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/api/problem"
	"github.com/ayo6706/retail-ledger/internal/idempotency"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "X-Idempotent-Replay"
	maxIdempotencyKey = 128
)

// IdempotencyMiddleware replays the first response for a repeated
// Idempotency-Key. The header is optional: requests without it run normally.
// Keys are scoped to the authenticated user, and a 5xx response frees the key
// again since no money moved.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	rp := &replayer{store: store, logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(idempotencyHeader)
			if store == nil || r.Method == http.MethodGet || r.Method == http.MethodHead || clientKey == "" {
				if clientKey == "" {
					observability.IncrementIdempotencyEvent("no_key")
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKey {
				problem.Write(w, r, http.StatusBadRequest, problem.Type("idempotency/invalid-key"), "", "Idempotency-Key is too long")
				return
			}
			rp.serve(w, r, next, idempotency.ScopedKey(UserIDFromContext(r.Context()), clientKey))
		})
	}
}

type replayer struct {
	store  *idempotency.Store
	logger *zap.Logger
}

func (rp *replayer) serve(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-body"), "", "Failed to read request body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	hash := hashRequest(r.Method, r.URL.Path, body)

	rec, err := rp.store.Lookup(r.Context(), key, hash)
	switch {
	case err == nil:
		rp.replay(w, rec, "replay")
		return
	case errors.Is(err, idempotency.ErrHashMismatch):
		observability.IncrementIdempotencyEvent("hash_mismatch")
		problem.Write(w, r, http.StatusConflict, problem.Type("idempotency/key-conflict"), "", "Idempotency-Key was used with a different request")
		return
	case errors.Is(err, idempotency.ErrInProgress):
		rp.await(w, r, key, hash, "replay_after_wait")
		return
	case !errors.Is(err, idempotency.ErrNotFound):
		observability.IncrementIdempotencyEvent("lookup_error")
		rp.logger.Warn("idempotency lookup failed", zap.Error(err))
	}

	reserved, err := rp.store.Reserve(r.Context(), key, hash, r.Method, r.URL.Path)
	if err != nil {
		observability.IncrementIdempotencyEvent("reserve_error")
		rp.logger.Error("idempotency reserve failed", zap.Error(err))
		problem.Write(w, r, http.StatusServiceUnavailable, problem.Type("idempotency/unavailable"), "", "idempotency store unavailable")
		return
	}
	if !reserved {
		rp.await(w, r, key, hash, "replay_after_reserve")
		return
	}
	observability.IncrementIdempotencyEvent("reserved")

	recorder := &bodyRecorder{ResponseWriter: w}
	next.ServeHTTP(recorder, r)
	rp.record(r, key, hash, recorder)
}

// await blocks until a concurrent request holding the same key finishes and
// replays its response.
func (rp *replayer) await(w http.ResponseWriter, r *http.Request, key, hash, event string) {
	rec, err := rp.store.WaitForCompletion(r.Context(), key, hash)
	if err == nil {
		rp.replay(w, rec, event)
		return
	}
	observability.IncrementIdempotencyEvent("in_progress_conflict")
	rp.logger.Warn("idempotency wait failed", zap.Error(err))
	problem.Write(w, r, http.StatusConflict, problem.Type("idempotency/in-progress"), "", "a request with this Idempotency-Key is still running")
}

func (rp *replayer) record(r *http.Request, key, hash string, rec *bodyRecorder) {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		if err := rp.store.Release(r.Context(), key); err != nil {
			rp.logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
		}
		observability.IncrementIdempotencyEvent("released")
		return
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	if _, err := rp.store.Finalize(r.Context(), key, hash, status, rec.body.Bytes(), contentType); err != nil {
		observability.IncrementIdempotencyEvent("finalize_error")
		rp.logger.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key))
		return
	}
	observability.IncrementIdempotencyEvent("finalized")
}

func (rp *replayer) replay(w http.ResponseWriter, rec *idempotency.Record, event string) {
	observability.IncrementIdempotencyEvent(event)
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set(replayHeader, rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'|'})
	h.Write([]byte(path))
	h.Write([]byte{'|'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder tees the response so it can be stored for replay.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	br.status = code
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}
