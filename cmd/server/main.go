// Command server starts the VodForge API HTTP service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"vodforge/internal/api"
	"vodforge/internal/media"
	"vodforge/internal/observability/logging"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/server"
	"vodforge/internal/storage"
)

// appConfig is populated from VODFORGE_* environment variables; flags override
// the common fields afterwards.
type appConfig struct {
	Addr         string   `envconfig:"ADDR" default:":8080"`
	UploadsRoot  string   `envconfig:"UPLOADS_ROOT" default:"data/uploads"`
	CatalogPath  string   `envconfig:"CATALOG_PATH" default:"data/catalog.json"`
	PostgresDSN  string   `envconfig:"POSTGRES_DSN"`
	LogLevel     string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"LOG_FORMAT" default:"json"`
	TLSCertFile  string   `envconfig:"TLS_CERT"`
	TLSKeyFile   string   `envconfig:"TLS_KEY"`
	AllowOrigins []string `envconfig:"CORS_ORIGINS"`
	AuthToken    string   `envconfig:"AUTH_TOKEN"`

	FFmpegBinary   string        `envconfig:"FFMPEG_BINARY"`
	FFprobeBinary  string        `envconfig:"FFPROBE_BINARY"`
	JobTimeout     time.Duration `envconfig:"JOB_TIMEOUT"`
	MaxConcurrent  int           `envconfig:"MAX_CONCURRENT_JOBS"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES"`
	AllowedTypes   []string      `envconfig:"ALLOWED_TYPES"`

	PostgresMaxConns       int32         `envconfig:"POSTGRES_MAX_CONNS"`
	PostgresMinConns       int32         `envconfig:"POSTGRES_MIN_CONNS"`
	PostgresConnLifetime   time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFETIME"`
	PostgresConnIdle       time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE"`
	PostgresHealthInterval time.Duration `envconfig:"POSTGRES_HEALTH_INTERVAL"`
	PostgresConnectTimeout time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT"`
	PostgresAppName        string        `envconfig:"POSTGRES_APP_NAME" default:"vodforge"`

	RateGlobalRPS    float64       `envconfig:"RATE_GLOBAL_RPS"`
	RateGlobalBurst  int           `envconfig:"RATE_GLOBAL_BURST"`
	RateUploadLimit  int           `envconfig:"RATE_UPLOAD_LIMIT"`
	RateUploadWindow time.Duration `envconfig:"RATE_UPLOAD_WINDOW"`
	RedisAddr        string        `envconfig:"RATE_REDIS_ADDR"`
	RedisPassword    string        `envconfig:"RATE_REDIS_PASSWORD"`
	RedisTimeout     time.Duration `envconfig:"RATE_REDIS_TIMEOUT"`

	TempSweepInterval time.Duration `envconfig:"TEMP_SWEEP_INTERVAL" default:"15m"`
	TempSweepMaxAge   time.Duration `envconfig:"TEMP_SWEEP_MAX_AGE" default:"1h"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	var cfg appConfig
	if err := envconfig.Process("vodforge", &cfg); err != nil {
		logging.Init(logging.Config{}).Error("failed to parse environment", "error", err)
		os.Exit(1)
	}

	addr := flag.String("addr", "", "HTTP listen address")
	uploadsRoot := flag.String("uploads-root", "", "directory for asset output and temp uploads")
	catalogPath := flag.String("catalog", "", "path to JSON catalog file")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for the catalog")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	ffmpegBinary := flag.String("ffmpeg", "", "ffmpeg binary to invoke")
	ffprobeBinary := flag.String("ffprobe", "", "ffprobe binary to invoke")
	jobTimeout := flag.Duration("job-timeout", 0, "per-rendition transcode deadline")
	maxConcurrent := flag.Int("max-concurrent-jobs", 0, "maximum renditions encoded in parallel")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "upload size ceiling in bytes")
	flag.Parse()

	cfg.Addr = firstNonEmpty(*addr, cfg.Addr)
	cfg.UploadsRoot = firstNonEmpty(*uploadsRoot, cfg.UploadsRoot)
	cfg.CatalogPath = firstNonEmpty(*catalogPath, cfg.CatalogPath)
	cfg.PostgresDSN = firstNonEmpty(*postgresDSN, cfg.PostgresDSN)
	cfg.LogLevel = firstNonEmpty(*logLevel, cfg.LogLevel)
	cfg.LogFormat = firstNonEmpty(*logFormat, cfg.LogFormat)
	cfg.TLSCertFile = firstNonEmpty(*tlsCert, cfg.TLSCertFile)
	cfg.TLSKeyFile = firstNonEmpty(*tlsKey, cfg.TLSKeyFile)
	cfg.FFmpegBinary = firstNonEmpty(*ffmpegBinary, cfg.FFmpegBinary)
	cfg.FFprobeBinary = firstNonEmpty(*ffprobeBinary, cfg.FFprobeBinary)
	if *jobTimeout > 0 {
		cfg.JobTimeout = *jobTimeout
	}
	if *maxConcurrent > 0 {
		cfg.MaxConcurrent = *maxConcurrent
	}
	if *maxUploadBytes > 0 {
		cfg.MaxUploadBytes = *maxUploadBytes
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	recorder := metrics.Default()

	store, err := openCatalog(cfg, logger)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}

	orchestrator := media.NewOrchestrator(media.OrchestratorConfig{
		Encoder:       media.FFmpegEncoder{Binary: cfg.FFmpegBinary},
		JobTimeout:    cfg.JobTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
		Logger:        logging.WithComponent(logger, "transcode"),
	})
	pipeline, err := media.NewPipeline(media.PipelineConfig{
		Store:          store,
		UploadsRoot:    cfg.UploadsRoot,
		Orchestrator:   orchestrator,
		Prober:         media.FFProbe{Binary: cfg.FFprobeBinary},
		AllowedTypes:   cfg.AllowedTypes,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logging.WithComponent(logger, "pipeline"),
	})
	if err != nil {
		logger.Error("failed to build upload pipeline", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, pipeline, logging.WithComponent(logger, "api"))

	srv, err := server.New(handler, server.Config{
		Addr: cfg.Addr,
		TLS:  server.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     cfg.RateGlobalRPS,
			GlobalBurst:   cfg.RateGlobalBurst,
			UploadLimit:   cfg.RateUploadLimit,
			UploadWindow:  cfg.RateUploadWindow,
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisTimeout:  cfg.RedisTimeout,
		},
		CORS:      server.CORSConfig{AllowedOrigins: cfg.AllowOrigins},
		AuthToken: cfg.AuthToken,
		Logger:    logger,
		Metrics:   recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepStop := startTempSweepWorker(
		ctx,
		logging.WithComponent(logger, "temp-sweeper"),
		tempFileSweeper{root: pipeline.UploadsRoot(), maxAge: cfg.TempSweepMaxAge},
		cfg.TempSweepInterval,
	)
	defer sweepStop()

	logger.Info("VodForge API listening", "addr", cfg.Addr)
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		logger.Info("TLS enabled", "cert_file", cfg.TLSCertFile)
	}
	logger.Info("metrics endpoint available", "path", "/metrics")

	runErr := srv.Run(ctx, cfg.ShutdownTimeout)

	sweepStop()

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		logger.Warn("failed to close catalog", "error", err)
	}

	if runErr != nil {
		logger.Error("server error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openCatalog(cfg appConfig, logger *slog.Logger) (storage.Repository, error) {
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{
			DSN:                 cfg.PostgresDSN,
			MaxConnections:      cfg.PostgresMaxConns,
			MinConnections:      cfg.PostgresMinConns,
			MaxConnLifetime:     cfg.PostgresConnLifetime,
			MaxConnIdleTime:     cfg.PostgresConnIdle,
			HealthCheckInterval: cfg.PostgresHealthInterval,
			ConnectTimeout:      cfg.PostgresConnectTimeout,
			ApplicationName:     cfg.PostgresAppName,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("catalog backed by Postgres")
		return store, nil
	}

	store, err := storage.NewFileStore(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog backed by JSON file", "path", cfg.CatalogPath)
	return store, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
