package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vodforge/internal/models"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/storage"
)

const defaultMaxUploadBytes = 500 << 20

// DefaultAllowedTypes is the MIME allow-list applied when none is configured.
func DefaultAllowedTypes() []string {
	return []string{"video/mp4", "video/quicktime", "video/webm", "video/x-matroska"}
}

// SourceUpload is the ephemeral record of a received file. It exists only
// between receipt and either promotion into an asset or deletion.
type SourceUpload struct {
	TempPath    string
	SizeBytes   int64
	ContentType string
	Filename    string
	Title       string
	Description string
}

// PipelineConfig wires the upload pipeline. Store and UploadsRoot are
// required; everything else falls back to defaults.
type PipelineConfig struct {
	Store          storage.Repository
	UploadsRoot    string
	Orchestrator   *Orchestrator
	Prober         Prober
	AllowedTypes   []string
	MaxUploadBytes int64
	Logger         *slog.Logger
	NewID          func() string
	Now            func() time.Time
}

// Pipeline drives one upload end to end: validate, probe and transcode
// concurrently, assemble the master manifest, persist the catalog record, and
// remove the temp source. Any failure after the temp file exists routes
// through the Cleaner before the error is returned, so a failed upload leaves
// neither a catalog record nor an output directory behind.
type Pipeline struct {
	store          storage.Repository
	uploadsRoot    string
	orchestrator   *Orchestrator
	prober         Prober
	allowedTypes   map[string]struct{}
	maxUploadBytes int64
	logger         *slog.Logger
	cleaner        Cleaner
	newID          func() string
	now            func() time.Time
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	root := strings.TrimSpace(cfg.UploadsRoot)
	if root == "" {
		return nil, fmt.Errorf("uploads root is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("prepare uploads root: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	orchestrator := cfg.Orchestrator
	if orchestrator == nil {
		orchestrator = NewOrchestrator(OrchestratorConfig{Logger: logger})
	}
	prober := cfg.Prober
	if prober == nil {
		prober = FFProbe{}
	}
	allowed := cfg.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes()
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, ct := range allowed {
		allowedSet[strings.ToLower(strings.TrimSpace(ct))] = struct{}{}
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Pipeline{
		store:          cfg.Store,
		uploadsRoot:    absRoot,
		orchestrator:   orchestrator,
		prober:         prober,
		allowedTypes:   allowedSet,
		maxUploadBytes: maxBytes,
		logger:         logger,
		cleaner:        Cleaner{Logger: logger},
		newID:          newID,
		now:            now,
	}, nil
}

// UploadsRoot returns the absolute directory assets are written beneath.
func (p *Pipeline) UploadsRoot() string {
	return p.uploadsRoot
}

// MaxUploadBytes returns the configured size ceiling.
func (p *Pipeline) MaxUploadBytes() int64 {
	return p.maxUploadBytes
}

// ValidateSource applies the MIME allow-list and size ceiling. It is safe to
// call before any disk write; rejections carry an InputError.
func (p *Pipeline) ValidateSource(contentType string, sizeBytes int64) error {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(normalized, ';'); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if _, ok := p.allowedTypes[normalized]; !ok {
		return &InputError{Reason: fmt.Sprintf("content type %q is not allowed", contentType)}
	}
	if sizeBytes > p.maxUploadBytes {
		return &InputError{
			Reason:    fmt.Sprintf("file size %d exceeds limit %d", sizeBytes, p.maxUploadBytes),
			Oversized: true,
		}
	}
	return nil
}

// Process runs the full ingestion pipeline for one validated source upload.
// On success the temp file is gone and the returned asset is persisted; on
// failure the asset directory and temp file are cleaned up and the triggering
// error is returned.
func (p *Pipeline) Process(ctx context.Context, src SourceUpload) (models.VideoAsset, error) {
	if err := p.ValidateSource(src.ContentType, src.SizeBytes); err != nil {
		return models.VideoAsset{}, err
	}

	id := p.newID()
	assetDir := filepath.Join(p.uploadsRoot, id)
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		p.cleaner.Cleanup(src.TempPath, "")
		return models.VideoAsset{}, fmt.Errorf("create asset dir: %w", err)
	}
	logger := p.logger.With("asset_id", id)

	// Probe and transcode run concurrently against the same read-only
	// source. A probe failure degrades duration to 0 and never fails the
	// upload.
	probeCh := make(chan int, 1)
	go func() {
		duration, err := p.prober.Duration(ctx, src.TempPath)
		if err != nil {
			logger.Warn("duration probe failed", "error", err)
			duration = 0
		}
		probeCh <- duration
	}()

	results, runErr := p.orchestrator.Run(ctx, src.TempPath, assetDir)
	// Join the prober before the temp file can be moved or deleted.
	duration := <-probeCh

	asset := models.VideoAsset{
		ID:              id,
		Title:           strings.TrimSpace(src.Title),
		Description:     strings.TrimSpace(src.Description),
		Filename:        src.Filename,
		SizeBytes:       src.SizeBytes,
		ContentType:     src.ContentType,
		DurationSeconds: duration,
		Status:          models.AssetStatusReady,
		CreatedAt:       p.now(),
	}
	if asset.Title == "" {
		asset.Title = titleFromFilename(src.Filename)
	}

	switch {
	case runErr == nil:
		asset.Renditions = descriptorsFromResults(results)
		if _, err := WriteMasterManifest(assetDir, asset.Renditions); err != nil {
			p.cleaner.Cleanup(src.TempPath, assetDir)
			return models.VideoAsset{}, err
		}
	case errors.Is(runErr, ErrEncoderUnavailable):
		logger.Warn("encoder unavailable, storing original container", "error", runErr)
		if err := p.storeOriginal(src, assetDir); err != nil {
			p.cleaner.Cleanup(src.TempPath, assetDir)
			return models.VideoAsset{}, err
		}
		asset.Status = models.AssetStatusRaw
	default:
		metrics.ObserveUpload("failed")
		p.cleaner.Cleanup(src.TempPath, assetDir)
		return models.VideoAsset{}, runErr
	}

	if err := p.store.CreateAsset(ctx, asset); err != nil {
		metrics.ObserveUpload("failed")
		p.cleaner.Cleanup(src.TempPath, assetDir)
		return models.VideoAsset{}, &PersistenceError{Err: err}
	}

	if asset.Status == models.AssetStatusReady {
		if err := os.Remove(src.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("remove temp source", "path", src.TempPath, "error", err)
		}
	}
	metrics.ObserveUpload(string(asset.Status))
	logger.Info("upload processed",
		"status", asset.Status,
		"renditions", len(asset.Renditions),
		"duration_seconds", asset.DurationSeconds)
	return asset, nil
}

// Delete removes the catalog record and the asset's directory tree. A
// directory that was already removed is tolerated.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.store.DeleteAsset(ctx, id); err != nil {
		return err
	}
	p.cleaner.RemoveAssetDir(filepath.Join(p.uploadsRoot, id))
	return nil
}

func (p *Pipeline) storeOriginal(src SourceUpload, assetDir string) error {
	target := filepath.Join(assetDir, RawObjectName(src.Filename))
	if err := os.Rename(src.TempPath, target); err != nil {
		return fmt.Errorf("store original container: %w", err)
	}
	return nil
}

// RawObjectName is the on-disk name of the unprocessed container stored by
// the degraded fallback path.
func RawObjectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return "source" + ext
}

func descriptorsFromResults(results []JobResult) []models.RenditionDescriptor {
	descriptors := make([]models.RenditionDescriptor, 0, len(results))
	for _, result := range results {
		r := result.Rendition
		descriptors = append(descriptors, models.RenditionDescriptor{
			Name:             r.Name,
			Resolution:       r.Resolution(),
			VideoBitrateKbps: r.VideoBitrateKbps,
			AudioBitrateKbps: r.AudioBitrateKbps,
			PlaylistPath:     filepath.ToSlash(filepath.Join(r.Name, renditionPlaylistName)),
		})
	}
	return descriptors
}

func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if strings.TrimSpace(name) == "" || name == "." {
		return "Untitled"
	}
	return name
}
