package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sbomdiff/sbomdiff/internal/server"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const bomV1 = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "serialNumber": "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
  "version": 1,
  "metadata": {"timestamp": "2024-01-01T00:00:00Z"},
  "components": [
    {"bom-ref": "lodash@4.17.20", "type": "library", "name": "lodash", "version": "4.17.20", "purl": "pkg:npm/lodash@4.17.20"}
  ]
}`

const bomV2 = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "serialNumber": "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b80",
  "version": 1,
  "metadata": {"timestamp": "2024-02-01T00:00:00Z"},
  "components": [
    {"bom-ref": "lodash@4.17.21", "type": "library", "name": "lodash", "version": "4.17.21", "purl": "pkg:npm/lodash@4.17.21"}
  ]
}`

func newTestServer() *server.Server {
	return server.NewServer(nil, nil, 0, testLogger(), 4, "1.0.0-test")
}

func diffBody(t *testing.T) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"old": map[string]any{"raw": json.RawMessage(bomV1)},
		"new": map[string]any{"raw": json.RawMessage(bomV2)},
	})
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return string(body)
}

func TestServer_Handler_RoutesExist(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodPost, "/diff"},
		{http.MethodPost, "/match"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code == http.StatusNotFound {
				t.Errorf("route %s %s not found", tt.method, tt.path)
			}
		})
	}
}

func TestServer_HandleHealth_Success(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if body["status"] != "OK" {
		t.Errorf("status field = %q, want OK", body["status"])
	}
}

func TestServer_HandleHealth_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServer_HandleDiff_Success(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	req := httptest.NewRequest(http.MethodPost, "/diff", strings.NewReader(diffBody(t)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if _, ok := result["Summary"]; !ok {
		t.Errorf("response missing Summary field: %v", result)
	}
}

func TestServer_HandleDiff_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	req := httptest.NewRequest(http.MethodGet, "/diff", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServer_HandleDiff_InvalidJSON(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	req := httptest.NewRequest(http.MethodPost, "/diff", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_HandleDiff_MissingRawField(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	body, _ := json.Marshal(map[string]any{
		"old": map[string]any{"raw": json.RawMessage(bomV1)},
		"new": map[string]any{},
	})
	req := httptest.NewRequest(http.MethodPost, "/diff", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_HandleMatch_Success(t *testing.T) {
	t.Parallel()

	handler := newTestServer().Handler()
	body, _ := json.Marshal(map[string]any{
		"old": map[string]any{"raw": json.RawMessage(bomV1)},
		"new": map[string]any{"raw": json.RawMessage(bomV2)},
	})
	req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if _, ok := result["Pairs"]; !ok {
		t.Errorf("response missing Pairs field: %v", result)
	}
}
