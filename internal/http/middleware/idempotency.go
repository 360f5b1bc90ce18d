package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/response"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/observability"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	IdempotencyReplayed  = "X-Idempotency-Replayed"
	idempotencyMaxKeyLen = 128
	inProgressCode       = "idempotency_in_progress"
)

// Idempotency replays the stored response for a repeated (key, body) pair
// and rejects concurrent duplicates. Requests without an Idempotency-Key
// header pass straight through.
type Idempotency struct {
	store  service.IdempotencyStore
	scope  string
	ttl    time.Duration
	logger *slog.Logger
}

func NewIdempotency(store service.IdempotencyStore, scope string, ttl time.Duration, logger *slog.Logger) *Idempotency {
	if scope == "" {
		scope = "api"
	}
	return &Idempotency{store: store, scope: scope, ttl: ttl, logger: logger}
}

// captureWriter buffers the downstream response so a success can be stored
// for replay.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (cw *captureWriter) WriteHeader(status int) {
	cw.status = status
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *captureWriter) Write(p []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	cw.body.Write(p)
	return cw.ResponseWriter.Write(p)
}

// replayableBody consumes the request body for fingerprinting and puts an
// identical reader back so the handler still sees it.
func replayableBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func (i *Idempotency) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > idempotencyMaxKeyLen {
				response.Error(w, r, http.StatusBadRequest, "bad_request", "idempotency key too long", nil)
				return
			}

			body, err := replayableBody(r)
			if err != nil {
				response.Error(w, r, http.StatusBadRequest, "bad_request", "unreadable request body", nil)
				return
			}
			fingerprint := service.RequestFingerprint(r.Method, r.URL.Path, body)

			begin, err := i.store.Begin(r.Context(), i.scope, key, fingerprint, i.ttl)
			if err != nil {
				// The guard itself failing must not turn a valid request
				// into an error; the operation just loses replay protection.
				i.logger.Error("idempotency begin failed",
					slog.String("scope", i.scope),
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			observability.RecordIdempotencyEvent(r.Context(), string(begin.State))

			switch begin.State {
			case service.IdempotencyStateReplay:
				w.Header().Set(IdempotencyReplayed, "true")
				if begin.Cached.ContentType != "" {
					w.Header().Set("Content-Type", begin.Cached.ContentType)
				}
				w.WriteHeader(begin.Cached.StatusCode)
				w.Write(begin.Cached.Body)
				return
			case service.IdempotencyStateInProgress:
				response.Error(w, r, http.StatusConflict, inProgressCode, "an identical request is already in flight", nil)
				return
			}

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			if cw.status == 0 {
				cw.status = http.StatusOK
			}
			cached := service.CachedHTTPResponse{
				StatusCode:  cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.body.Bytes(),
			}
			if err := i.store.Complete(r.Context(), i.scope, key, fingerprint, cached, i.ttl); err != nil {
				i.logger.Error("idempotency complete failed",
					slog.String("scope", i.scope),
					slog.String("error", err.Error()))
			}
		})
	}
}
