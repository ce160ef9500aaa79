package analyzer

import (
	"context"

	"suture/internal/config"
)

// Result is the analyzer verdict recorded on a completed submission.
type Result struct {
	Score    float64 `json:"score"`
	Summary  string  `json:"summary,omitempty"`
	Detail   string  `json:"detail,omitempty"`
	Engine   string  `json:"engine"`
	Duration float64 `json:"duration_seconds"`
}

// Analyzer scores a staged video file.
type Analyzer interface {
	Run(ctx context.Context, videoPath string) (*Result, error)
}

// New selects the analysis engine from the configuration.
func New(cfg *config.Config) Analyzer {
	if cfg.Processing.AnalyzerCommand != "" {
		return NewCommand(cfg.Processing.AnalyzerCommand, cfg.AnalyzerTimeout())
	}
	return NewBuiltin()
}
