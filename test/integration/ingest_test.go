package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/service"
)

func landResult(t *testing.T, env envelope) service.LandResult {
	t.Helper()
	var result service.LandResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode land result: %v", err)
	}
	return result
}

func TestIngestDeduplicatesResubmission(t *testing.T) {
	ts := newTestServer(t)
	rawKey, _ := ts.createStaticKey(t, "connector", 100, "ingest:products")

	body := ingestBody("p-1", "p-2", "p-3")
	resp, env := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", rawKey, body))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, error = %+v", resp.StatusCode, env.Error)
	}
	first := landResult(t, env)
	if first.Landed != 3 || first.Deduplicated != 0 {
		t.Fatalf("first run: %+v", first)
	}

	resp, env = doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", rawKey, body))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	second := landResult(t, env)
	if second.Landed != 0 || second.Deduplicated != 3 {
		t.Fatalf("resubmission should fully deduplicate: %+v", second)
	}
	if second.RunID == first.RunID {
		t.Fatal("each submission is its own run")
	}

	var count int64
	if err := ts.DB.Table(domain.BronzeProductsTable).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("bronze_products rows = %d, want 3", count)
	}
}

func TestIngestSourcesLandInSeparateTables(t *testing.T) {
	ts := newTestServer(t)
	rawKey, _ := ts.createStaticKey(t, "connector", 100, "ingest:products", "ingest:customers")

	if resp, _ := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", rawKey, ingestBody("x-1"))); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("products: status = %d", resp.StatusCode)
	}
	if resp, _ := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/customers", rawKey, ingestBody("x-1"))); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("customers: status = %d", resp.StatusCode)
	}

	for _, table := range []string{domain.BronzeProductsTable, domain.BronzeCustomersTable} {
		var count int64
		if err := ts.DB.Table(table).Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("%s rows = %d, want 1", table, count)
		}
	}
}

func TestIngestTriggersOrchestratorOnceForNewData(t *testing.T) {
	ts := newTestServer(t)
	rawKey, _ := ts.createStaticKey(t, "connector", 100, "ingest:products")

	body := ingestBody("t-1")
	if resp, _ := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", rawKey, body)); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ts.Triggers.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := ts.Triggers.count(); got != 1 {
		t.Fatalf("orchestrator triggers = %d, want 1", got)
	}

	// A fully deduplicated re-run must not trigger again.
	if resp, _ := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", rawKey, body)); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	time.Sleep(100 * time.Millisecond)
	if got := ts.Triggers.count(); got != 1 {
		t.Fatalf("orchestrator triggers after dedup = %d, want still 1", got)
	}
}

func TestIngestUnknownSourceIs404(t *testing.T) {
	ts := newTestServer(t)
	rawKey, _ := ts.createStaticKey(t, "connector", 100, "ingest:invoices")

	resp, env := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/invoices", rawKey, ingestBody("x")))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, error = %+v", resp.StatusCode, env.Error)
	}
}

func TestKeyLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.linkUser(t, "admin@acme.example", domain.RoleAdmin)
	token := mustToken(t, "user-1", "admin@acme.example")

	// Create.
	createBody := []byte(`{"name":"via-http","scopes":["ingest:products"],"environment":"live"}`)
	req := bearerRequest(t, http.MethodPost, ts.URL+"/api/v1/keys", token, createBody)
	resp, env := doRequest(t, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, error = %+v", resp.StatusCode, env.Error)
	}
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created key: %v", err)
	}
	if created.Key == "" {
		t.Fatal("raw key must be returned at creation")
	}

	// The fresh key admits immediately.
	if resp, _ := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", created.Key, ingestBody("k-1"))); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("fresh key: status = %d", resp.StatusCode)
	}

	// Revoke, then the key stops working.
	req = bearerRequest(t, http.MethodDelete, ts.URL+"/api/v1/keys/"+created.ID, token, nil)
	if resp, _ := doRequest(t, req); resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke: status = %d", resp.StatusCode)
	}
	if resp, env := doRequest(t, apiKeyPost(t, ts.URL+"/api/v1/ingest/products", created.Key, ingestBody("k-2"))); resp.StatusCode != http.StatusUnauthorized || env.Error.Code != "invalid_key" {
		t.Fatalf("revoked key: status = %d, error = %+v", resp.StatusCode, env.Error)
	}

	// Second revoke conflicts, unknown id is not found.
	req = bearerRequest(t, http.MethodDelete, ts.URL+"/api/v1/keys/"+created.ID, token, nil)
	if resp, _ := doRequest(t, req); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second revoke: status = %d", resp.StatusCode)
	}
	req = bearerRequest(t, http.MethodDelete, ts.URL+"/api/v1/keys/does-not-exist", token, nil)
	if resp, _ := doRequest(t, req); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		resp, _ := doRequest(t, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d", path, resp.StatusCode)
		}
	}
}
