// Package e2e contains end-to-end tests against a running searchd instance
// with its real dependencies (Kafka, PostgreSQL, Redis).
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

func serviceURL() string {
	if v := os.Getenv("E2E_SEARCHD_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func skipIfDown(t *testing.T, client *http.Client, base string) {
	t.Helper()
	resp, err := client.Get(base + "/health/live")
	if err != nil {
		t.Skipf("searchd unavailable at %s: %v", base, err)
	}
	resp.Body.Close()
}

// TestServiceHealth verifies liveness and readiness respond.
func TestServiceHealth(t *testing.T) {
	base := serviceURL()
	client := &http.Client{Timeout: 5 * time.Second}
	skipIfDown(t, client, base)

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(base + path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestUpsertThenSearch exercises the document lifecycle end to end: upsert a
// uniquely titled document, search for it, then delete it.
func TestUpsertThenSearch(t *testing.T) {
	base := serviceURL()
	client := &http.Client{Timeout: 10 * time.Second}
	skipIfDown(t, client, base)

	marker := fmt.Sprintf("e2emarker%d", time.Now().UnixNano())
	doc := map[string]any{
		"id":    marker,
		"type":  "resource",
		"title": marker + " learning guide",
		"metadata": map[string]any{
			"createdAt": time.Now().UTC().Format(time.RFC3339),
		},
	}
	body, _ := json.Marshal(doc)
	req, _ := http.NewRequest(http.MethodPut, base+"/api/v1/documents", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d", resp.StatusCode)
	}
	defer func() {
		del, _ := http.NewRequest(http.MethodDelete, base+"/api/v1/documents/resource/"+marker, nil)
		if resp, err := client.Do(del); err == nil {
			resp.Body.Close()
		}
	}()

	search := fmt.Sprintf(`{"query":%q}`, marker)
	resp, err = client.Post(base+"/api/v1/search", "application/json", bytes.NewReader([]byte(search)))
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("search status = %d: %s", resp.StatusCode, payload)
	}
	var result struct {
		Total   int `json:"total"`
		Results []struct {
			Document struct {
				ID string `json:"id"`
			} `json:"document"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Total != 1 || len(result.Results) != 1 {
		t.Fatalf("total = %d, want exactly the upserted document", result.Total)
	}
	if result.Results[0].Document.ID != marker {
		t.Errorf("result id = %q, want %q", result.Results[0].Document.ID, marker)
	}
}

// TestMetricsExposed verifies the Prometheus endpoint serves the service's
// collectors when metrics are enabled.
func TestMetricsExposed(t *testing.T) {
	base := serviceURL()
	client := &http.Client{Timeout: 5 * time.Second}
	skipIfDown(t, client, base)

	resp, err := client.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		t.Skip("metrics endpoint disabled")
	}
	payload, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(payload, []byte("search_queries_total")) {
		t.Error("search_queries_total not exposed")
	}
}
