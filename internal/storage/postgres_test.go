package storage

import (
	"fmt"
	"testing"
	"time"
)

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan arity mismatch: %d != %d", len(dest), len(r.values))
	}
	for i, value := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = value.(string)
		case *int64:
			*d = value.(int64)
		case *int:
			*d = value.(int)
		case *[]byte:
			*d = value.([]byte)
		case *time.Time:
			*d = value.(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", dest[i])
		}
	}
	return nil
}

func assetRow(renditionsJSON string) fakeRow {
	return fakeRow{values: []any{
		"a1", "Clip", "desc", "clip.mp4", int64(1024), "video/mp4", 30, "ready",
		[]byte(renditionsJSON), time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}}
}

func TestScanAssetDecodesRenditions(t *testing.T) {
	row := assetRow(`[{"name":"720p","resolution":"1280x720","videoBitrateKbps":2800,"audioBitrateKbps":128,"playlistPath":"720p/index.m3u8"}]`)

	asset, err := scanAsset(row)
	if err != nil {
		t.Fatalf("scanAsset returned error: %v", err)
	}
	if asset.ID != "a1" || asset.SizeBytes != 1024 || asset.DurationSeconds != 30 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if len(asset.Renditions) != 1 || asset.Renditions[0].PlaylistPath != "720p/index.m3u8" {
		t.Fatalf("unexpected renditions: %+v", asset.Renditions)
	}
}

func TestScanAssetEmptyRenditionsBecomeNil(t *testing.T) {
	asset, err := scanAsset(assetRow(`[]`))
	if err != nil {
		t.Fatalf("scanAsset returned error: %v", err)
	}
	if asset.Renditions != nil {
		t.Fatalf("expected nil renditions for raw asset, got %+v", asset.Renditions)
	}
}

func TestScanAssetRejectsCorruptRenditions(t *testing.T) {
	if _, err := scanAsset(assetRow(`{broken`)); err == nil {
		t.Fatal("expected decode error for corrupt renditions column")
	}
}
