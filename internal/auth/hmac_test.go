package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
)

const (
	testHMACPrefix = "nb_live_hmac0001"
	testHMACSecret = "test-shared-secret-for-signing"
)

func newHMACFixture() (*fakeKeyRepo, *fakeVault) {
	repo := &fakeKeyRepo{keys: map[string]*domain.APIKey{
		testHMACPrefix: {
			ID:            "hmac-key-1",
			TenantID:      "tenant-1",
			KeyPrefix:     testHMACPrefix,
			Scopes:        "ingest:products",
			HMACSecretRef: "vault:ref-1",
		},
	}}
	vault := &fakeVault{secrets: map[string]string{"vault:ref-1": testHMACSecret}}
	return repo, vault
}

// signedRequest builds a request signed the way a well-behaved client would.
func signedRequest(method, path string, body []byte, date string, headers map[string]string, signedHeaders []string, secret string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	sts := security.StringToSign(method, path, date, signedHeaders, req.Header.Get, body)
	sig := security.SignHMAC(secret, sts)
	signedList := ""
	for i, h := range signedHeaders {
		if i > 0 {
			signedList += ";"
		}
		signedList += h
	}
	req.Header.Set("Authorization", fmt.Sprintf("HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s", testHMACPrefix, date, signedList, sig))
	return req
}

func TestHMACVerifyStrictModeSuccess(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	body := []byte(`{"records":[{"sku":"A-1"}]}`)
	ts := time.Now().UTC().Format(time.RFC3339)
	req := signedRequest("POST", "/api/v1/ingest/products", body,
		time.Now().Format("20060102"),
		map[string]string{"x-timestamp": ts, "host": "api.example.com"},
		[]string{"host", "x-timestamp"},
		testHMACSecret)

	ac, err := v.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ac.SubjectID != "hmac-key-1" || ac.TenantID != "tenant-1" {
		t.Fatalf("unexpected context: %+v", ac)
	}

	// The handler must still be able to read the body after verification.
	replayed, err := io.ReadAll(req.Body)
	if err != nil || !bytes.Equal(replayed, body) {
		t.Fatalf("body not replayable after verify: %q err=%v", replayed, err)
	}
}

func TestHMACVerifyLegacyModeYesterdayAccepted(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	date := time.Now().AddDate(0, 0, -1).Format("20060102")
	req := signedRequest("POST", "/api/v1/ingest/products", []byte(`{}`), date,
		map[string]string{"host": "api.example.com"},
		[]string{"host"},
		testHMACSecret)

	if _, err := v.Verify(context.Background(), req); err != nil {
		t.Fatalf("legacy yesterday should verify: %v", err)
	}
}

func TestHMACVerifyLegacyModeStaleDateRejected(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	date := time.Now().AddDate(0, 0, -3).Format("20060102")
	req := signedRequest("POST", "/api/v1/ingest/products", []byte(`{}`), date,
		map[string]string{"host": "api.example.com"},
		[]string{"host"},
		testHMACSecret)

	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeExpiredSignature, http.StatusUnauthorized)
}

func TestHMACVerifyStaleStrictTimestamp(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	ts := time.Now().UTC().Add(-20 * time.Minute).Format(time.RFC3339)
	req := signedRequest("POST", "/api/v1/ingest/products", []byte(`{}`),
		time.Now().Format("20060102"),
		map[string]string{"x-timestamp": ts},
		[]string{"x-timestamp"},
		testHMACSecret)

	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeExpiredSignature, http.StatusUnauthorized)
}

func TestHMACVerifyUnsignedTimestampRejected(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	ts := time.Now().UTC().Format(time.RFC3339)
	// x-timestamp present on the wire but absent from SignedHeaders.
	req := signedRequest("POST", "/api/v1/ingest/products", []byte(`{}`),
		time.Now().Format("20060102"),
		map[string]string{"x-timestamp": ts, "host": "api.example.com"},
		[]string{"host"},
		testHMACSecret)

	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeUnsignedTimestamp, http.StatusUnauthorized)
}

func TestHMACVerifyWrongSecretIsSignatureFailure(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	req := signedRequest("POST", "/api/v1/ingest/products", []byte(`{}`),
		time.Now().Format("20060102"),
		map[string]string{"host": "api.example.com"},
		[]string{"host"},
		"not-the-right-secret")

	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeInvalidSignature, http.StatusUnauthorized)
}

func TestHMACVerifyTamperedBodyIsSignatureFailure(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	req := signedRequest("POST", "/api/v1/ingest/products", []byte(`{"a":1}`),
		time.Now().Format("20060102"),
		map[string]string{"host": "api.example.com"},
		[]string{"host"},
		testHMACSecret)
	req.Body = io.NopCloser(bytes.NewReader([]byte(`{"a":2}`)))

	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeInvalidSignature, http.StatusUnauthorized)
}

func TestHMACVerifyMalformedHeaderAndUnknownCredential(t *testing.T) {
	repo, vault := newHMACFixture()
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	req := httptest.NewRequest("POST", "/x", nil)
	req.Header.Set("Authorization", "HMAC-SHA256 garbage")
	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeInvalidHMAC, http.StatusUnauthorized)

	req = signedRequest("POST", "/x", nil, time.Now().Format("20060102"),
		map[string]string{"host": "h"}, []string{"host"}, testHMACSecret)
	delete(repo.keys, testHMACPrefix)
	_, err = v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeInvalidHMAC, http.StatusUnauthorized)
}

func TestHMACVerifyVaultOutageIsServerError(t *testing.T) {
	repo, vault := newHMACFixture()
	vault.err = ErrUpstreamUnavailable
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	req := signedRequest("POST", "/x", nil, time.Now().Format("20060102"),
		map[string]string{"host": "h"}, []string{"host"}, testHMACSecret)
	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeAuthError, http.StatusInternalServerError)
}

func TestHMACVerifyStaticKeyCannotSign(t *testing.T) {
	repo, vault := newHMACFixture()
	repo.keys[testHMACPrefix].HMACSecretRef = ""
	v := NewHMACVerifier(repo, vault, slog.Default(), 15*time.Minute)

	req := signedRequest("POST", "/x", nil, time.Now().Format("20060102"),
		map[string]string{"host": "h"}, []string{"host"}, testHMACSecret)
	_, err := v.Verify(context.Background(), req)
	assertAuthError(t, err, CodeInvalidHMAC, http.StatusUnauthorized)
}
