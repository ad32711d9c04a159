package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func seedStreamObjects(t *testing.T, handler *Handler, assetID string) {
	t.Helper()
	assetDir := filepath.Join(handler.Pipeline.UploadsRoot(), assetID)
	if err := os.MkdirAll(filepath.Join(assetDir, "720p"), 0o755); err != nil {
		t.Fatalf("create asset dirs: %v", err)
	}
	files := map[string]string{
		filepath.Join(assetDir, "master.m3u8"):                     "#EXTM3U\n",
		filepath.Join(assetDir, "720p", "index.m3u8"):              "#EXTM3U\n#EXT-X-PLAYLIST-TYPE:VOD\n",
		filepath.Join(assetDir, "720p", "segment_000.ts"):          "segment bytes",
		filepath.Join(handler.Pipeline.UploadsRoot(), "loose.txt"): "should be unreachable",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestStreamsServesManifest(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	seedStreamObjects(t, handler, "asset-1")

	req := httptest.NewRequest(http.MethodGet, "/streams/asset-1/master.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Streams(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.apple.mpegurl" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("Cache-Control = %q", got)
	}
	if rec.Body.String() != "#EXTM3U\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestStreamsServesNestedPlaylistAndSegment(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	seedStreamObjects(t, handler, "asset-1")

	req := httptest.NewRequest(http.MethodGet, "/streams/asset-1/720p/index.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Streams(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("nested playlist: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/streams/asset-1/720p/segment_000.ts", nil)
	rec = httptest.NewRecorder()
	handler.Streams(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("segment: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp2t" {
		t.Fatalf("segment Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Fatalf("segment Cache-Control = %q", got)
	}
}

func TestStreamsRejectsTraversal(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	seedStreamObjects(t, handler, "asset-1")

	paths := []string{
		"/streams/asset-1/../loose.txt",
		"/streams/../asset-1/master.m3u8",
		"/streams/asset-1/..%2Floose.txt",
		"/streams/asset-1/",
		"/streams/asset-1",
	}
	for _, target := range paths {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		handler.Streams(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rec.Code)
		}
	}
}

func TestStreamsUnknownObject(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	seedStreamObjects(t, handler, "asset-1")

	req := httptest.NewRequest(http.MethodGet, "/streams/asset-1/missing.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Streams(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	// Directories are not served.
	req = httptest.NewRequest(http.MethodGet, "/streams/asset-1/720p", nil)
	rec = httptest.NewRecorder()
	handler.Streams(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("directory: expected 404, got %d", rec.Code)
	}
}

func TestStreamsMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/streams/asset-1/master.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Streams(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestStreamsHeadRequest(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	seedStreamObjects(t, handler, "asset-1")

	req := httptest.NewRequest(http.MethodHead, "/streams/asset-1/master.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Streams(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("HEAD response must not carry a body, got %d bytes", rec.Body.Len())
	}
}
