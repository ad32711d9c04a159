package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vodforge/internal/models"
)

// PostgresConfig describes how the catalog initialises its Postgres
// connection pool. Reconnect and backoff behaviour belong to the pool; the
// pipeline treats any catalog failure as a PersistenceError.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a Postgres-backed catalog and ensures its schema
// exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	store := &postgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *postgresStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS video_assets (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    filename         TEXT NOT NULL,
    size_bytes       BIGINT NOT NULL,
    content_type     TEXT NOT NULL,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    status           TEXT NOT NULL,
    renditions       JSONB NOT NULL DEFAULT '[]',
    created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS video_assets_created_at_idx ON video_assets (created_at DESC);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply catalog schema: %w", err)
	}
	return nil
}

func (s *postgresStore) CreateAsset(ctx context.Context, asset models.VideoAsset) error {
	renditions := asset.Renditions
	if renditions == nil {
		renditions = []models.RenditionDescriptor{}
	}
	renditionsJSON, err := json.Marshal(renditions)
	if err != nil {
		return fmt.Errorf("encode renditions for %s: %w", asset.ID, err)
	}
	tag, err := s.pool.Exec(ctx,
		"INSERT INTO video_assets (id, title, description, filename, size_bytes, content_type, duration_seconds, status, renditions, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING",
		asset.ID, asset.Title, asset.Description, asset.Filename, asset.SizeBytes,
		asset.ContentType, asset.DurationSeconds, asset.Status, renditionsJSON, asset.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert asset %s: %w", asset.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, asset.ID)
	}
	return nil
}

func (s *postgresStore) ListAssets(ctx context.Context) ([]models.VideoAsset, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, title, description, filename, size_bytes, content_type, duration_seconds, status, renditions, created_at FROM video_assets ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.VideoAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (s *postgresStore) GetAsset(ctx context.Context, id string) (models.VideoAsset, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, title, description, filename, size_bytes, content_type, duration_seconds, status, renditions, created_at FROM video_assets WHERE id = $1", id)
	asset, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VideoAsset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.VideoAsset{}, err
	}
	return asset, nil
}

func (s *postgresStore) DeleteAsset(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM video_assets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *postgresStore) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (models.VideoAsset, error) {
	var (
		asset          models.VideoAsset
		renditionsJSON []byte
	)
	err := row.Scan(&asset.ID, &asset.Title, &asset.Description, &asset.Filename,
		&asset.SizeBytes, &asset.ContentType, &asset.DurationSeconds, &asset.Status,
		&renditionsJSON, &asset.CreatedAt)
	if err != nil {
		return models.VideoAsset{}, err
	}
	if len(renditionsJSON) > 0 {
		if err := json.Unmarshal(renditionsJSON, &asset.Renditions); err != nil {
			return models.VideoAsset{}, fmt.Errorf("decode renditions for %s: %w", asset.ID, err)
		}
	}
	if len(asset.Renditions) == 0 {
		asset.Renditions = nil
	}
	return asset, nil
}

var _ Repository = (*postgresStore)(nil)
