package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	"suture/internal/services"
)

const (
	minScore = 1.0
	maxScore = 10.0
)

// Builtin scores a video deterministically from its content digest. It stands
// in for a real skill-assessment model when no analyzer command is configured.
type Builtin struct{}

func NewBuiltin() *Builtin {
	return &Builtin{}
}

func (b *Builtin) Run(ctx context.Context, videoPath string) (*Result, error) {
	started := time.Now()

	f, err := os.Open(videoPath)
	if err != nil {
		return nil, services.Wrap(services.ErrAnalysis, "analyzer", "run", "open video", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, services.Wrap(services.ErrAnalysis, "analyzer", "run", "digest video", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest := hash.Sum(nil)
	raw := binary.BigEndian.Uint64(digest[:8])
	span := maxScore - minScore
	score := minScore + float64(raw%uint64(span*10+1))/10
	score = math.Round(score*10) / 10

	return &Result{
		Score:    score,
		Summary:  "builtin digest scoring",
		Engine:   "builtin",
		Duration: time.Since(started).Seconds(),
	}, nil
}
