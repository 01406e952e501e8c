package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is stamped with -ldflags at build time.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

type versionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// VersionHandler reports build metadata. It needs no authentication.
func VersionHandler(info BuildInfo) http.Handler {
	info = info.withDefaults()
	body := versionResponse{
		Version:   info.Version,
		GitCommit: info.GitCommit,
		BuildDate: info.BuildDate,
		GoVersion: runtime.Version(),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	})
}
