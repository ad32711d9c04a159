package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodforge/internal/models"
)

func sampleAsset(id string, createdAt time.Time) models.VideoAsset {
	return models.VideoAsset{
		ID:              id,
		Title:           "Clip " + id,
		Filename:        id + ".mp4",
		SizeBytes:       1024,
		ContentType:     "video/mp4",
		DurationSeconds: 30,
		Status:          models.AssetStatusReady,
		Renditions: []models.RenditionDescriptor{
			{Name: "720p", Resolution: "1280x720", VideoBitrateKbps: 2800, AudioBitrateKbps: 128, PlaylistPath: "720p/index.m3u8"},
		},
		CreatedAt: createdAt,
	}
}

func TestFileStoreCreateAndGet(t *testing.T) {
	store, err := NewFileStore("")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	asset := sampleAsset("a1", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	if err := store.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset returned error: %v", err)
	}

	got, err := store.GetAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAsset returned error: %v", err)
	}
	if got.Title != asset.Title || len(got.Renditions) != 1 {
		t.Fatalf("unexpected asset: %+v", got)
	}

	// Mutating the returned copy must not leak back into the store.
	got.Renditions[0].Name = "mutated"
	again, _ := store.GetAsset(ctx, "a1")
	if again.Renditions[0].Name != "720p" {
		t.Fatal("GetAsset returned shared rendition slice")
	}
}

func TestFileStoreCreateRejectsDuplicateAndEmptyID(t *testing.T) {
	store, _ := NewFileStore("")
	ctx := context.Background()

	asset := sampleAsset("dup", time.Now().UTC())
	if err := store.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset returned error: %v", err)
	}
	if err := store.CreateAsset(ctx, asset); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if err := store.CreateAsset(ctx, models.VideoAsset{ID: "  "}); err == nil {
		t.Fatal("expected error for empty asset id")
	}
}

func TestFileStoreListOrdering(t *testing.T) {
	store, _ := NewFileStore("")
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for _, asset := range []models.VideoAsset{
		sampleAsset("older", base),
		sampleAsset("newest", base.Add(2*time.Hour)),
		sampleAsset("middle", base.Add(time.Hour)),
	} {
		if err := store.CreateAsset(ctx, asset); err != nil {
			t.Fatalf("CreateAsset(%s): %v", asset.ID, err)
		}
	}

	assets, err := store.ListAssets(ctx)
	if err != nil {
		t.Fatalf("ListAssets returned error: %v", err)
	}
	got := make([]string, len(assets))
	for i, asset := range assets {
		got[i] = asset.ID
	}
	want := []string{"newest", "middle", "older"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("list order = %v, want %v", got, want)
	}
}

func TestFileStoreListTiesBreakOnID(t *testing.T) {
	store, _ := NewFileStore("")
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for _, id := range []string{"aaa", "zzz", "mmm"} {
		if err := store.CreateAsset(ctx, sampleAsset(id, at)); err != nil {
			t.Fatalf("CreateAsset(%s): %v", id, err)
		}
	}

	assets, _ := store.ListAssets(ctx)
	if assets[0].ID != "zzz" || assets[1].ID != "mmm" || assets[2].ID != "aaa" {
		t.Fatalf("unexpected tie-break order: %s, %s, %s", assets[0].ID, assets[1].ID, assets[2].ID)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, _ := NewFileStore("")
	ctx := context.Background()

	if err := store.CreateAsset(ctx, sampleAsset("gone", time.Now().UTC())); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if err := store.DeleteAsset(ctx, "gone"); err != nil {
		t.Fatalf("DeleteAsset returned error: %v", err)
	}
	if _, err := store.GetAsset(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteAsset(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting twice should return ErrNotFound, got %v", err)
	}
}

func TestFileStoreGetUnknownID(t *testing.T) {
	store, _ := NewFileStore("")
	if _, err := store.GetAsset(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	asset := sampleAsset("persisted", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	if err := store.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen catalog: %v", err)
	}
	got, err := reopened.GetAsset(ctx, "persisted")
	if err != nil {
		t.Fatalf("GetAsset after reopen: %v", err)
	}
	if got.Title != asset.Title || got.Renditions[0].PlaylistPath != "720p/index.m3u8" {
		t.Fatalf("reloaded asset mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(asset.CreatedAt) {
		t.Fatalf("created at drifted across reload: %v != %v", got.CreatedAt, asset.CreatedAt)
	}
}

func TestFileStoreRejectsCorruptCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Fatal("expected error for corrupt catalog file")
	}
}

func TestFileStoreCreateRollsBackOnPersistFailure(t *testing.T) {
	store, _ := NewFileStore("")
	ctx := context.Background()

	store.persistOverride = func(map[string]models.VideoAsset) error {
		return fmt.Errorf("disk full")
	}
	if err := store.CreateAsset(ctx, sampleAsset("doomed", time.Now().UTC())); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	store.persistOverride = nil
	if _, err := store.GetAsset(ctx, "doomed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed create must not leave a record behind, got %v", err)
	}
}

func TestFileStoreDeleteRollsBackOnPersistFailure(t *testing.T) {
	store, _ := NewFileStore("")
	ctx := context.Background()

	if err := store.CreateAsset(ctx, sampleAsset("sticky", time.Now().UTC())); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}

	store.persistOverride = func(map[string]models.VideoAsset) error {
		return fmt.Errorf("disk full")
	}
	if err := store.DeleteAsset(ctx, "sticky"); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	store.persistOverride = nil
	if _, err := store.GetAsset(ctx, "sticky"); err != nil {
		t.Fatalf("failed delete must keep the record, got %v", err)
	}
}
