package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/secid-mx/community-search/internal/engine"
	"github.com/secid-mx/community-search/internal/engine/index"
	"github.com/secid-mx/community-search/internal/engine/indexer"
	"github.com/secid-mx/community-search/internal/engine/suggest"
	"github.com/secid-mx/community-search/pkg/config"
)

// newTestServer wires a handler with an in-memory engine and no external
// dependencies (no Redis, no Kafka, no Postgres).
func newTestServer(t *testing.T) (*httptest.Server, *indexer.Indexer) {
	t.Helper()
	store := index.NewStore()
	suggestions := suggest.NewStore(config.DefaultSuggest())
	ix := indexer.New(store, suggestions)
	eng := engine.New(store, suggestions, config.DefaultEngine())
	h := New(eng, ix, store, nil, nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("PUT /api/v1/documents", h.UpsertDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{type}/{id}", h.DeleteDocument)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("GET /api/v1/index/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ix
}

func seedDoc(t *testing.T, ix *indexer.Indexer, id, title string) {
	t.Helper()
	err := ix.AddDocument(&index.Document{
		ID:    id,
		Type:  index.TypeJob,
		Title: title,
		Metadata: index.Metadata{
			CreatedAt: time.Now().Add(-time.Hour),
		},
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestSearchEndpoint(t *testing.T) {
	srv, ix := newTestServer(t)
	seedDoc(t, ix, "1", "Golang Developer")

	resp := postJSON(t, srv.URL+"/api/v1/search", engine.SearchRequest{Query: "golang"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[engine.SearchResponse](t, resp)
	if body.Total != 1 || len(body.Results) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if body.Results[0].Document.ID != "1" {
		t.Errorf("result id = %q", body.Results[0].Document.ID)
	}
}

func TestSearchEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/search", engine.SearchRequest{Query: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	raw, err := http.Post(srv.URL+"/api/v1/search", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", raw.StatusCode)
	}
	raw.Body.Close()
}

func TestSuggestEndpoint(t *testing.T) {
	srv, ix := newTestServer(t)
	seedDoc(t, ix, "1", "Backend Engineer")

	resp, err := http.Get(srv.URL + "/api/v1/suggest?q=backend")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string][]suggest.Suggestion](t, resp)
	if len(body["suggestions"]) == 0 {
		t.Error("no suggestions returned")
	}

	missing, err := http.Get(srv.URL + "/api/v1/suggest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", missing.StatusCode)
	}
}

func TestDocumentLifecycleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	client := srv.Client()

	doc := index.Document{
		ID:    "7",
		Type:  index.TypeEvent,
		Title: "Community Meetup",
		Metadata: index.Metadata{
			CreatedAt: time.Now().Add(-time.Hour),
		},
	}
	data, _ := json.Marshal(doc)

	put, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/documents", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := client.Do(put)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first upsert status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	// Second upsert of the same identity replaces, reported as 200.
	put2, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/documents", bytes.NewReader(data))
	resp, err = client.Do(put2)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second upsert status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["replaced"] != true {
		t.Errorf("replaced = %v", body["replaced"])
	}

	del, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/event/7", nil)
	resp, err = client.Do(del)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	// Deleting again is a 404, removal of the unknown is not silent over HTTP.
	del2, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/event/7", nil)
	resp, err = client.Do(del2)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", resp.StatusCode)
	}

	del3, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/video/7", nil)
	resp, err = client.Do(del3)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown type delete status = %d, want 400", resp.StatusCode)
	}
}

func TestUpsertEndpointRejectsInvalidDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	data, _ := json.Marshal(index.Document{Type: index.TypeJob, Title: "No ID"})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/documents", bytes.NewReader(data))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReindexUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/reindex", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a loader", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, ix := newTestServer(t)
	seedDoc(t, ix, "1", "Golang Developer")

	resp, err := http.Get(srv.URL + "/api/v1/index/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body := decode[map[string]any](t, resp)
	if body["documents"].(float64) != 1 {
		t.Errorf("documents = %v", body["documents"])
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/cache/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "disabled" {
		t.Errorf("status = %q, want disabled", body["status"])
	}
}
