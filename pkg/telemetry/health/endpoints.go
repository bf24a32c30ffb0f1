package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"kairo-hq/guardrails/pkg/config"
)

// VersionInfo contains build information and the active rule version.
type VersionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
	RuleVersion string `json:"rule_version,omitempty"`
}

// LivenessHandler serves the liveness probe. It always answers 200.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler serves the readiness probe: 200 when ready or degraded,
// 503 when a required check fails.
//
//	{
//	    "status": "not_ready",
//	    "checks": {"rules": {"status": "unhealthy", "message": "no rule registry published"}},
//	    "timestamp": "2026-10-19T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}

		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status == StatusNotReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler serves build information. ruleVersion, when non-nil, is called
// on every request so the response follows rule reloads.
func VersionHandler(version, commit, buildTime string, ruleVersion func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}

		info := VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
			GoVersion: runtime.Version(),
		}
		if ruleVersion != nil {
			info.RuleVersion = ruleVersion()
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Mount registers the probe endpoints on mux at the configured paths.
func (c *Checker) Mount(mux *http.ServeMux, cfg *config.HealthConfig, version http.HandlerFunc) {
	mux.HandleFunc(cfg.LivenessPath, c.LivenessHandler())
	mux.HandleFunc(cfg.ReadinessPath, c.ReadinessHandler())
	if version != nil {
		mux.HandleFunc(cfg.VersionPath, version)
	}
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
