// Package admin provides the read-only JSON admin API for Stream Gate:
// live sessions, relay statistics, recent audit records, the running
// configuration, and build information.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Stream-Gate/Streamgate/internal/config"
	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
	"github.com/Stream-Gate/Streamgate/internal/domain/session"
	"github.com/Stream-Gate/Streamgate/internal/service"
)

// defaultAuditLimit caps /admin/audit responses unless the caller asks
// for fewer.
const defaultAuditLimit = 100

// BuildInfo carries version metadata injected at build time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// APIHandler serves the read-only admin endpoints.
type APIHandler struct {
	sessions    session.SessionStore
	stats       *service.StatsService
	auditReader audit.RecentSource
	cfg         *config.Config
	apiKeyHash  string
	buildInfo   *BuildInfo
	logger      *slog.Logger
	startTime   time.Time
}

// APIOption configures an APIHandler dependency.
type APIOption func(*APIHandler)

// WithSessionStore sets the live-session registry.
func WithSessionStore(s session.SessionStore) APIOption {
	return func(h *APIHandler) { h.sessions = s }
}

// WithStatsService sets the relay statistics service.
func WithStatsService(s *service.StatsService) APIOption {
	return func(h *APIHandler) { h.stats = s }
}

// WithAuditReader sets the source of recent audit records.
func WithAuditReader(r audit.RecentSource) APIOption {
	return func(h *APIHandler) { h.auditReader = r }
}

// WithConfig sets the running configuration served by /admin/config.
func WithConfig(cfg *config.Config) APIOption {
	return func(h *APIHandler) { h.cfg = cfg }
}

// WithAPIKeyHash sets the argon2id hash admin requests must match.
func WithAPIKeyHash(hash string) APIOption {
	return func(h *APIHandler) { h.apiKeyHash = hash }
}

// WithBuildInfo sets the build version information.
func WithBuildInfo(info *BuildInfo) APIOption {
	return func(h *APIHandler) { h.buildInfo = info }
}

// WithAPILogger sets the logger.
func WithAPILogger(l *slog.Logger) APIOption {
	return func(h *APIHandler) { h.logger = l }
}

// WithStartTime sets the server start time for uptime calculation.
func WithStartTime(t time.Time) APIOption {
	return func(h *APIHandler) { h.startTime = t }
}

// NewAPIHandler creates an APIHandler with the given options.
func NewAPIHandler(opts ...APIOption) *APIHandler {
	h := &APIHandler{
		logger:    slog.Default(),
		startTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns an http.Handler with all admin routes registered, each
// behind the admin key middleware. Every endpoint is read-only.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/sessions", h.handleListSessions)
	mux.HandleFunc("GET /admin/stats", h.handleGetStats)
	mux.HandleFunc("GET /admin/audit", h.handleRecentAudit)
	mux.HandleFunc("GET /admin/config", h.handleGetConfig)
	mux.HandleFunc("GET /admin/version", h.handleVersion)

	return h.authMiddleware(mux)
}

// handleListSessions returns all live relay sessions.
func (h *APIHandler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.respondError(w, http.StatusServiceUnavailable, "session registry not configured")
		return
	}

	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		h.logger.Error("admin: failed to list sessions", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetStats returns the relay counters plus process uptime.
func (h *APIHandler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.respondError(w, http.StatusServiceUnavailable, "stats service not configured")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"stats":          h.stats.GetStats(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// handleRecentAudit returns the most recent audit records, newest first.
// Accepts ?limit=N; defaults to 100.
func (h *APIHandler) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditReader == nil {
		h.respondError(w, http.StatusServiceUnavailable, "audit trail not configured")
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	records := h.auditReader.Recent(limit)
	h.respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// handleGetConfig returns the running configuration rendered as YAML,
// with secrets redacted.
func (h *APIHandler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		h.respondError(w, http.StatusServiceUnavailable, "config not available")
		return
	}

	data, err := yaml.Marshal(h.cfg.Redacted())
	if err != nil {
		h.logger.Error("admin: failed to render config", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to render config")
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleVersion returns build metadata and runtime information.
func (h *APIHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := h.buildInfo
	if info == nil {
		info = &BuildInfo{Version: "dev"}
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"version":        info.Version,
		"commit":         info.Commit,
		"build_date":     info.BuildDate,
		"go_version":     runtime.Version(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// respondJSON writes a JSON response with the given status code.
func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("admin: failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response.
func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
