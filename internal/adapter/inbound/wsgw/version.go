package wsgw

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo carries the build metadata served on the public /version
// endpoint. Populated from the ldflags variables in the cmd package.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// versionHandler serves build metadata as JSON. Unlike /admin/version it
// requires no key; it exposes nothing beyond what the binary itself is.
func versionHandler(info *VersionInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := info
		if v == nil {
			v = &VersionInfo{Version: "dev"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"version":    v.Version,
			"commit":     v.Commit,
			"build_date": v.BuildDate,
			"go_version": runtime.Version(),
		})
	})
}
