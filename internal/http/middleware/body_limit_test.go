package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMaxBodyBytesCapsIdempotencyBuffering(t *testing.T) {
	store := newMemIdempotencyStore()
	idem := NewIdempotency(store, "ingest", time.Hour, testLogger()).Middleware()
	var calls int
	handler := MaxBodyBytes(64)(idem(countingHandler(&calls)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentPost("key-cap", strings.Repeat("x", 1024)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if calls != 0 {
		t.Fatal("handler must not run for an oversized body")
	}
	if len(store.pending) != 0 {
		t.Fatal("no idempotency record must be opened for an oversized body")
	}
}

func TestMaxBodyBytesPassesSmallBodies(t *testing.T) {
	var calls int
	handler := MaxBodyBytes(64)(countingHandler(&calls))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/products", strings.NewReader(`{"a":1}`))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted || calls != 1 {
		t.Fatalf("status=%d calls=%d", rec.Code, calls)
	}
}
