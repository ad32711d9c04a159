package media

import "fmt"

// Rendition is one entry of the configured transcode ladder. Bitrates are in
// kilobits per second; the master manifest multiplies them out to bits per
// second when advertising bandwidth.
type Rendition struct {
	Name             string
	Width            int
	Height           int
	VideoBitrateKbps int
	AudioBitrateKbps int
	SegmentSeconds   int
}

// Resolution returns the WxH form used by scale filters and stream
// descriptors.
func (r Rendition) Resolution() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// DefaultLadder is the rendition set used when no ladder is configured.
// Ladder order is load-bearing: the master manifest must list renditions in
// exactly this order for client-side selection.
func DefaultLadder() []Rendition {
	return []Rendition{
		{Name: "1080p", Width: 1920, Height: 1080, VideoBitrateKbps: 5000, AudioBitrateKbps: 192, SegmentSeconds: 4},
		{Name: "720p", Width: 1280, Height: 720, VideoBitrateKbps: 2800, AudioBitrateKbps: 128, SegmentSeconds: 4},
		{Name: "480p", Width: 854, Height: 480, VideoBitrateKbps: 1400, AudioBitrateKbps: 96, SegmentSeconds: 4},
	}
}

func cloneLadder(ladder []Rendition) []Rendition {
	if len(ladder) == 0 {
		return nil
	}
	out := make([]Rendition, len(ladder))
	copy(out, ladder)
	return out
}
