package media

import (
	"errors"
	"log/slog"
	"os"
)

// Cleaner removes partial on-disk artifacts after a pipeline failure. Cleanup
// problems are logged and swallowed so the triggering error stays the one the
// caller sees; already-absent paths are not an error.
type Cleaner struct {
	Logger *slog.Logger
}

func (c Cleaner) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Cleanup deletes the temp source file and the asset output directory when
// present. Either argument may be empty.
func (c Cleaner) Cleanup(tempPath, assetDir string) {
	if tempPath != "" {
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger().Error("cleanup temp file", "path", tempPath, "error", err)
		}
	}
	c.RemoveAssetDir(assetDir)
}

// RemoveAssetDir recursively deletes an asset's output directory, tolerating
// a directory that was already removed.
func (c Cleaner) RemoveAssetDir(assetDir string) {
	if assetDir == "" {
		return
	}
	if err := os.RemoveAll(assetDir); err != nil {
		c.logger().Error("cleanup asset dir", "path", assetDir, "error", err)
	}
}
