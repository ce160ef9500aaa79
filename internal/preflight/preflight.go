package preflight

import (
	"context"
	"strings"

	"suture/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable checks for the given config. Checks are only
// run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Video directory", cfg.Paths.VideoDir))
	results = append(results, CheckDirectoryAccess("Results directory", cfg.Paths.ResultsDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDiskSpace("Video disk space", cfg.Paths.VideoDir))

	if command := strings.TrimSpace(cfg.Processing.AnalyzerCommand); command != "" {
		results = append(results, CheckCommand("Analyzer command", command))
	}
	if cfg.Notifications.EmailEnabled {
		results = append(results, CheckSMTP(ctx, cfg.Notifications.SMTPHost, cfg.Notifications.SMTPPort))
	}

	return results
}

// Passed reports whether every check succeeded.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
