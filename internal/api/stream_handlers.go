package api

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Streams serves HLS playlists and segments from an asset's output
// directory. The route shape is /streams/{assetID}/{objectPath}.
func (h *Handler) Streams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/streams/")
	assetID, objectPath, ok := strings.Cut(rest, "/")
	if !ok || strings.TrimSpace(assetID) == "" || strings.TrimSpace(objectPath) == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("stream object not found"))
		return
	}

	// Collapse any dot segments before touching the filesystem. A cleaned
	// path that escapes the asset directory is rejected outright.
	cleaned := path.Clean("/" + objectPath)
	if cleaned == "/" || strings.Contains(cleaned, "..") {
		writeError(w, http.StatusNotFound, fmt.Errorf("stream object not found"))
		return
	}
	if strings.Contains(assetID, "..") || strings.ContainsAny(assetID, `/\`) {
		writeError(w, http.StatusNotFound, fmt.Errorf("stream object not found"))
		return
	}

	fullPath := filepath.Join(h.Pipeline.UploadsRoot(), assetID, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, fmt.Errorf("stream object not found"))
		return
	}

	switch strings.ToLower(filepath.Ext(fullPath)) {
	case ".m3u8":
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Header().Set("Cache-Control", "no-cache")
	case ".ts":
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	http.ServeFile(w, r, fullPath)
}
