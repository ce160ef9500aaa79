package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"suture/internal/services"
)

// Command runs an external analyzer binary against the staged video and
// parses its JSON verdict from stdout.
type Command struct {
	command string
	timeout time.Duration

	// commandRunner overrides process execution in tests.
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommand builds a command engine. The command string may carry leading
// arguments; the video path is always appended last.
func NewCommand(command string, timeout time.Duration) *Command {
	return &Command{command: command, timeout: timeout}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Command) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.commandRunner = runner
}

func (c *Command) Run(ctx context.Context, videoPath string) (*Result, error) {
	fields := strings.Fields(c.command)
	if len(fields) == 0 {
		return nil, services.Wrap(services.ErrAnalysis, "analyzer", "run", "empty analyzer command", nil)
	}
	name := fields[0]
	args := append(fields[1:], videoPath)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	output, err := c.run(ctx, name, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrAnalysis, "analyzer", "run",
				fmt.Sprintf("%s timed out after %s", name, c.timeout), err)
		}
		return nil, services.Wrap(services.ErrAnalysis, "analyzer", "run", name, err)
	}

	result, err := parseVerdict(output)
	if err != nil {
		return nil, services.Wrap(services.ErrAnalysis, "analyzer", "run",
			fmt.Sprintf("parse %s output", name), err)
	}
	result.Engine = name
	result.Duration = time.Since(started).Seconds()
	return result, nil
}

func (c *Command) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// parseVerdict accepts either a full JSON verdict or a bare numeric score.
func parseVerdict(output []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return nil, errors.New("empty analyzer output")
	}

	var result Result
	if err := json.Unmarshal(trimmed, &result); err == nil {
		return &result, validateScore(result.Score)
	}

	var score float64
	if err := json.Unmarshal(trimmed, &score); err != nil {
		return nil, fmt.Errorf("unrecognized analyzer output %q", trimmed)
	}
	return &Result{Score: score}, validateScore(score)
}

func validateScore(score float64) error {
	if score < minScore || score > maxScore {
		return fmt.Errorf("score %.2f outside range [%g, %g]", score, minScore, maxScore)
	}
	return nil
}
