package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vodforge/internal/observability/metrics"
)

const (
	defaultJobTimeout       = 120 * time.Second
	defaultMaxConcurrency   = 2
	renditionPlaylistName   = "index.m3u8"
	renditionSegmentPattern = "segment_%03d.ts"
)

// JobStatus is the terminal state of one rendition job.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
)

// TranscodeJob binds one rendition to its source and its private output
// subdirectory. Jobs never share output directories, which is the sole
// isolation mechanism between concurrent encoder processes.
type TranscodeJob struct {
	Source    string
	OutputDir string
	Rendition Rendition
}

// PlaylistPath returns the rendition playlist path relative to the asset root.
func (j TranscodeJob) PlaylistPath() string {
	return filepath.ToSlash(filepath.Join(j.Rendition.Name, renditionPlaylistName))
}

// JobResult records the terminal state of one rendition job.
type JobResult struct {
	Rendition Rendition
	Status    JobStatus
	Duration  time.Duration
	Err       error
}

// Encoder runs one encoding job against an external encoder. Implementations
// must honour context cancellation by terminating the underlying process.
type Encoder interface {
	Available() error
	Encode(ctx context.Context, job TranscodeJob) error
}

// FFmpegEncoder invokes ffmpeg once per rendition, producing a self-contained
// HLS playlist plus fixed-duration segments in the job's output directory.
type FFmpegEncoder struct {
	Binary string
}

func (e FFmpegEncoder) binary() string {
	if strings.TrimSpace(e.Binary) == "" {
		return "ffmpeg"
	}
	return e.Binary
}

func (e FFmpegEncoder) Available() error {
	if _, err := exec.LookPath(e.binary()); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}
	return nil
}

func (e FFmpegEncoder) Encode(ctx context.Context, job TranscodeJob) error {
	cmd := exec.CommandContext(ctx, e.binary(), hlsArgs(job)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func hlsArgs(job TranscodeJob) []string {
	r := job.Rendition
	segments := r.SegmentSeconds
	if segments <= 0 {
		segments = 4
	}
	return []string{
		"-y",
		"-i", job.Source,
		"-vf", fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", r.Width, r.Height),
		"-c:v", "h264",
		"-profile:v", "main",
		"-preset", "veryfast",
		"-crf", "20",
		"-sc_threshold", "0",
		"-g", "48",
		"-keyint_min", "48",
		"-b:v", fmt.Sprintf("%dk", r.VideoBitrateKbps),
		"-maxrate", fmt.Sprintf("%dk", r.VideoBitrateKbps),
		"-bufsize", fmt.Sprintf("%dk", r.VideoBitrateKbps*2),
		"-c:a", "aac",
		"-ar", "48000",
		"-b:a", fmt.Sprintf("%dk", r.AudioBitrateKbps),
		"-f", "hls",
		"-hls_time", strconv.Itoa(segments),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.Join(job.OutputDir, renditionSegmentPattern),
		filepath.Join(job.OutputDir, renditionPlaylistName),
	}
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// OrchestratorConfig configures the rendition fan-out. Zero values fall back
// to package defaults.
type OrchestratorConfig struct {
	Encoder       Encoder
	Ladder        []Rendition
	JobTimeout    time.Duration
	MaxConcurrent int
	Logger        *slog.Logger
}

// Orchestrator runs one encoding job per ladder entry against the external
// encoder, bounded by a configurable concurrency limit and a per-job timeout.
// The upload succeeds only if every job succeeds: when any job fails, the
// remaining jobs are cancelled rather than left burning CPU for an upload
// that can no longer complete.
type Orchestrator struct {
	encoder       Encoder
	ladder        []Rendition
	jobTimeout    time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	encoder := cfg.Encoder
	if encoder == nil {
		encoder = FFmpegEncoder{}
	}
	ladder := cloneLadder(cfg.Ladder)
	if len(ladder) == 0 {
		ladder = DefaultLadder()
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		encoder:       encoder,
		ladder:        ladder,
		jobTimeout:    jobTimeout,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Ladder returns a copy of the configured rendition ladder in order.
func (o *Orchestrator) Ladder() []Rendition {
	return cloneLadder(o.ladder)
}

// Run transcodes the source into every ladder rendition under outputRoot.
// Each rendition writes exclusively to its own subdirectory. Results are
// returned in ladder order regardless of completion order. On failure the
// first EncodeError is returned; ErrEncoderUnavailable is returned before any
// job starts when the encoder binary cannot be invoked at all.
func (o *Orchestrator) Run(ctx context.Context, source, outputRoot string) ([]JobResult, error) {
	if err := o.encoder.Available(); err != nil {
		return nil, err
	}
	metrics.TranscodeStarted()
	defer metrics.TranscodeFinished()

	jobs := make([]TranscodeJob, len(o.ladder))
	for i, rendition := range o.ladder {
		dir := filepath.Join(outputRoot, rendition.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create rendition dir %s: %w", dir, err)
		}
		jobs[i] = TranscodeJob{Source: source, OutputDir: dir, Rendition: rendition}
	}

	// Each goroutine writes only to results[i]; the disjoint indices make
	// additional locking unnecessary.
	results := make([]JobResult, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.maxConcurrent)
	for i := range jobs {
		i := i
		job := jobs[i]
		group.Go(func() error {
			jobCtx, cancel := context.WithTimeout(groupCtx, o.jobTimeout)
			defer cancel()
			start := time.Now()
			err := o.encoder.Encode(jobCtx, job)
			elapsed := time.Since(start)
			result := JobResult{Rendition: job.Rendition, Duration: elapsed}
			switch {
			case err == nil:
				result.Status = JobSucceeded
			case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
				result.Status = JobTimedOut
				result.Err = jobCtx.Err()
			default:
				result.Status = JobFailed
				result.Err = err
			}
			results[i] = result
			metrics.ObserveTranscodeJob(string(result.Status))
			if result.Err != nil {
				o.logger.Error("rendition job finished",
					"rendition", job.Rendition.Name,
					"status", result.Status,
					"duration_ms", elapsed.Milliseconds(),
					"error", result.Err)
				return &EncodeError{
					Rendition: job.Rendition.Name,
					TimedOut:  result.Status == JobTimedOut,
					Err:       result.Err,
				}
			}
			o.logger.Info("rendition job finished",
				"rendition", job.Rendition.Name,
				"status", result.Status,
				"duration_ms", elapsed.Milliseconds())
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
