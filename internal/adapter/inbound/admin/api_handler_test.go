package admin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Stream-Gate/Streamgate/internal/adapter/outbound/memory"
	"github.com/Stream-Gate/Streamgate/internal/config"
	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
	"github.com/Stream-Gate/Streamgate/internal/domain/session"
	"github.com/Stream-Gate/Streamgate/internal/service"
)

const testAdminKey = "test-admin-key"

// testKeyHash is a sha256 hash of testAdminKey; the middleware accepts it
// alongside argon2id, and it keeps the tests fast.
func testKeyHash() string {
	sum := sha256.Sum256([]byte(testAdminKey))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandler(t *testing.T, opts ...APIOption) http.Handler {
	t.Helper()
	opts = append([]APIOption{
		WithAPIKeyHash(testKeyHash()),
		WithAPILogger(testLogger()),
	}, opts...)
	return NewAPIHandler(opts...).Routes()
}

func doRequest(t *testing.T, h http.Handler, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestAdminRejectsMissingKey(t *testing.T) {
	h := newTestHandler(t, WithStatsService(service.NewStatsService()))

	rec := doRequest(t, h, "/admin/stats", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] == "" {
		t.Error("401 response missing error field")
	}
}

func TestAdminRejectsWrongKey(t *testing.T) {
	h := newTestHandler(t, WithStatsService(service.NewStatsService()))

	rec := doRequest(t, h, "/admin/stats", "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminAcceptsBearerHeader(t *testing.T) {
	h := newTestHandler(t, WithStatsService(service.NewStatsService()))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAdminFailsClosedWithoutHash(t *testing.T) {
	h := NewAPIHandler(WithAPILogger(testLogger())).Routes()

	rec := doRequest(t, h, "/admin/stats", testAdminKey)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when no hash configured", rec.Code)
	}
}

func TestAdminListSessions(t *testing.T) {
	store := memory.NewSessionStore()
	sess, err := session.New("192.0.2.1:1000", "fp-1")
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	h := newTestHandler(t, WithSessionStore(store))
	rec := doRequest(t, h, "/admin/sessions", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
	sessions := body["sessions"].([]any)
	first := sessions[0].(map[string]any)
	if first["token_fingerprint"] != "fp-1" {
		t.Errorf("session payload = %v", first)
	}
}

func TestAdminStats(t *testing.T) {
	stats := service.NewStatsService()
	stats.RecordConnection()
	stats.RecordSessionStarted()

	h := newTestHandler(t, WithStatsService(stats))
	rec := doRequest(t, h, "/admin/stats", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	inner := body["stats"].(map[string]any)
	if inner["connections"].(float64) != 1 {
		t.Errorf("connections = %v, want 1", inner["connections"])
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Error("response missing uptime_seconds")
	}
}

func TestAdminRecentAudit(t *testing.T) {
	store := memory.NewAuditStoreWithWriter(&strings.Builder{})
	for i := 0; i < 5; i++ {
		rec := audit.NewRecord(audit.EventSessionStarted)
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	h := newTestHandler(t, WithAuditReader(store))

	rec := doRequest(t, h, "/admin/audit?limit=3", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"].(float64) != 3 {
		t.Errorf("count = %v, want 3", body["count"])
	}

	rec = doRequest(t, h, "/admin/audit?limit=nope", testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for bad limit, want 400", rec.Code)
	}

	rec = doRequest(t, h, "/admin/audit?limit=-2", testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for negative limit, want 400", rec.Code)
	}
}

func TestAdminConfigRedactsSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Admin.Enabled = true
	cfg.Admin.APIKeyHash = "$argon2id$v=19$m=48128,t=1,p=1$secret$secret"

	h := newTestHandler(t, WithConfig(cfg))
	rec := doRequest(t, h, "/admin/config", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("content type = %q, want application/yaml", ct)
	}

	raw := rec.Body.String()
	if strings.Contains(raw, "secret") {
		t.Error("rendered config leaks the admin key hash")
	}
	var parsed config.Config
	if err := yaml.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("response is not valid YAML: %v", err)
	}
	if parsed.Upstream.URL != cfg.Upstream.URL {
		t.Errorf("rendered upstream.url = %q, want %q", parsed.Upstream.URL, cfg.Upstream.URL)
	}
}

func TestAdminVersion(t *testing.T) {
	h := newTestHandler(t,
		WithBuildInfo(&BuildInfo{Version: "1.2.3", Commit: "abc1234", BuildDate: "2026-08-30"}),
		WithStartTime(time.Now().Add(-time.Minute)),
	)

	rec := doRequest(t, h, "/admin/version", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["version"] != "1.2.3" || body["commit"] != "abc1234" {
		t.Errorf("version payload = %v", body)
	}
	if body["uptime_seconds"].(float64) < 59 {
		t.Errorf("uptime_seconds = %v, want >= 59", body["uptime_seconds"])
	}
}

func TestAdminUnconfiguredDependenciesReturn503(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/admin/sessions", "/admin/stats", "/admin/audit", "/admin/config"} {
		rec := doRequest(t, h, path, testAdminKey)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}
