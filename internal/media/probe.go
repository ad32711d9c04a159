package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultProbeTimeout = 20 * time.Second

// Prober reports the duration of a source media file in whole seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (int, error)
}

// FFProbe shells out to ffprobe with a bounded timeout. Exceeding the timeout
// kills the process.
type FFProbe struct {
	Binary  string
	Timeout time.Duration
}

func (p FFProbe) binary() string {
	if strings.TrimSpace(p.Binary) == "" {
		return "ffprobe"
	}
	return p.Binary
}

func (p FFProbe) Duration(ctx context.Context, path string) (int, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("probe %s: %w", path, ctx.Err())
		}
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseDuration(string(out))
}

func parseDuration(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "N/A" {
		return 0, fmt.Errorf("probe returned no duration")
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", trimmed, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", trimmed)
	}
	return int(math.Round(seconds)), nil
}
