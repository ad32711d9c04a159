package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vodforge/internal/models"
)

// MasterManifestName is the fixed filename of the master playlist at the
// asset root.
const MasterManifestName = "master.m3u8"

// MasterManifest renders the master playlist for the given rendition
// descriptors. Descriptor order must match the configured ladder: clients
// select renditions by position, so reordering here breaks playback quality
// selection.
func MasterManifest(renditions []models.RenditionDescriptor) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, r := range renditions {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", r.VideoBitrateKbps*1000, r.Resolution)
		b.WriteString(r.PlaylistPath)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteMasterManifest writes the master playlist into assetDir and returns
// its absolute path.
func WriteMasterManifest(assetDir string, renditions []models.RenditionDescriptor) (string, error) {
	path := filepath.Join(assetDir, MasterManifestName)
	if err := os.WriteFile(path, []byte(MasterManifest(renditions)), 0o644); err != nil {
		return "", fmt.Errorf("write master manifest: %w", err)
	}
	return path, nil
}
