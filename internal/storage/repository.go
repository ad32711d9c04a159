package storage

import (
	"context"
	"errors"

	"vodforge/internal/models"
)

// ErrNotFound is returned by Get/Delete when no asset exists for the id.
var ErrNotFound = errors.New("asset not found")

// ErrDuplicateID guards the invariant that asset ids are assigned exactly
// once, before transcoding begins.
var ErrDuplicateID = errors.New("asset id already exists")

// Repository exposes the catalog operations the upload pipeline and API
// handlers require. List returns assets most recent first.
type Repository interface {
	CreateAsset(ctx context.Context, asset models.VideoAsset) error
	ListAssets(ctx context.Context) ([]models.VideoAsset, error)
	GetAsset(ctx context.Context, id string) (models.VideoAsset, error)
	DeleteAsset(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func cloneAsset(asset models.VideoAsset) models.VideoAsset {
	out := asset
	if len(asset.Renditions) > 0 {
		out.Renditions = make([]models.RenditionDescriptor, len(asset.Renditions))
		copy(out.Renditions, asset.Renditions)
	}
	return out
}
