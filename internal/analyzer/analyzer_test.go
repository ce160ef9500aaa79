package analyzer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"suture/internal/analyzer"
	"suture/internal/services"
	"suture/internal/testsupport"
)

func TestBuiltinIsDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(cfg.Paths.VideoDir, "sample.mp4")
	testsupport.WriteFile(t, video, 4096)

	engine := analyzer.NewBuiltin()
	ctx := context.Background()

	first, err := engine.Run(ctx, video)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := engine.Run(ctx, video)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if first.Score != second.Score {
		t.Fatalf("expected deterministic score, got %v then %v", first.Score, second.Score)
	}
	if first.Score < 1 || first.Score > 10 {
		t.Fatalf("score %v outside range", first.Score)
	}
	if first.Engine != "builtin" {
		t.Fatalf("unexpected engine %q", first.Engine)
	}
}

func TestBuiltinMissingVideo(t *testing.T) {
	engine := analyzer.NewBuiltin()
	_, err := engine.Run(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, services.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
}

func TestCommandParsesJSONVerdict(t *testing.T) {
	engine := analyzer.NewCommand("assess --fast", time.Minute)
	var gotArgs []string
	engine.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "assess" {
			t.Fatalf("unexpected command %q", name)
		}
		gotArgs = args
		return []byte(`{"score": 8.5, "summary": "clean needle handling"}`), nil
	})

	result, err := engine.Run(context.Background(), "/tmp/video.mp4")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Score != 8.5 || result.Summary != "clean needle handling" {
		t.Fatalf("unexpected result %#v", result)
	}
	if result.Engine != "assess" {
		t.Fatalf("unexpected engine %q", result.Engine)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "--fast" || gotArgs[1] != "/tmp/video.mp4" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
}

func TestCommandAcceptsBareScore(t *testing.T) {
	engine := analyzer.NewCommand("assess", time.Minute)
	engine.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("7.2\n"), nil
	})

	result, err := engine.Run(context.Background(), "/tmp/video.mp4")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Score != 7.2 {
		t.Fatalf("unexpected score %v", result.Score)
	}
}

func TestCommandRejectsBadOutput(t *testing.T) {
	cases := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"garbage", "not json"},
		{"out of range", `{"score": 42}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := analyzer.NewCommand("assess", time.Minute)
			engine.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return []byte(tc.output), nil
			})
			if _, err := engine.Run(context.Background(), "/tmp/video.mp4"); !errors.Is(err, services.ErrAnalysis) {
				t.Fatalf("expected analysis error, got %v", err)
			}
		})
	}
}

func TestCommandFailureWrapsAnalysisError(t *testing.T) {
	engine := analyzer.NewCommand("assess", time.Minute)
	engine.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	_, err := engine.Run(context.Background(), "/tmp/video.mp4")
	if !errors.Is(err, services.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("analyzer failures should count against the retry ceiling")
	}
}
