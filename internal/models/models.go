package models

import "time"

const (
	// AssetStatusReady marks an asset whose full rendition ladder was
	// produced and whose master manifest is on disk.
	AssetStatusReady = "ready"
	// AssetStatusRaw marks the degraded fallback: the original container
	// was stored unprocessed because no encoder was available. Raw assets
	// carry an empty rendition list.
	AssetStatusRaw = "raw"
)

// VideoAsset is the catalog record for one processed upload plus all of its
// on-disk artifacts. The ID doubles as the directory name under the uploads
// root, so it is assigned before any transcoding begins.
type VideoAsset struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	Filename        string                `json:"filename"`
	SizeBytes       int64                 `json:"sizeBytes"`
	ContentType     string                `json:"contentType"`
	DurationSeconds int                   `json:"durationSeconds"`
	Status          string                `json:"status"`
	Renditions      []RenditionDescriptor `json:"renditions,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// RenditionDescriptor describes one produced resolution/bitrate variant.
// PlaylistPath is relative to the asset root directory.
type RenditionDescriptor struct {
	Name             string `json:"name"`
	Resolution       string `json:"resolution"`
	VideoBitrateKbps int    `json:"videoBitrateKbps"`
	AudioBitrateKbps int    `json:"audioBitrateKbps"`
	PlaylistPath     string `json:"playlistPath"`
}
