package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/frnn"
)

// Config validation errors
var (
	ErrMissingPoints     = errors.New("points cannot be empty")
	ErrInvalidRadius     = errors.New("radius must be positive")
	ErrInvalidSizeFactor = errors.New("size_factor must be positive")
	ErrInvalidTableSize  = errors.New("max_table_size must be positive")
	ErrInvalidStore      = errors.New("store must be local, s3 or minio")
	ErrMissingBucket     = errors.New("bucket cannot be empty for s3 or minio stores")
	ErrInvalidLogFormat  = errors.New("log_format must be 'json' or 'text'")
	ErrInvalidLogLevel   = errors.New("log_level must be debug, info, warn, or error")
)

// Config holds the CLI settings. Values come from the environment (FRNN_*),
// an optional .env file and command line flags, in increasing precedence.
type Config struct {
	Points     string `envconfig:"POINTS"`
	Queries    string `envconfig:"QUERIES"`
	Output     string `envconfig:"OUTPUT"`
	NumBatches int    `envconfig:"NUM_BATCHES"`

	Radius           float64 `envconfig:"RADIUS" default:"0.5"`
	Metric           string  `envconfig:"METRIC" default:"L2"`
	Precision        string  `envconfig:"PRECISION" default:"float32"`
	IndexWidth       string  `envconfig:"INDEX_WIDTH" default:"int64"`
	SizeFactor       float64 `envconfig:"SIZE_FACTOR" default:"0.015625"`
	MaxTableSize     int64   `envconfig:"MAX_TABLE_SIZE" default:"33554432"`
	IgnoreQueryPoint bool    `envconfig:"IGNORE_QUERY_POINT"`
	ReturnDistances  bool    `envconfig:"RETURN_DISTANCES" default:"true"`
	Verify           bool    `envconfig:"VERIFY"`

	Workers     int   `envconfig:"WORKERS"`
	MemoryLimit int64 `envconfig:"MEMORY_LIMIT"`
	IOLimit     int64 `envconfig:"IO_LIMIT"`

	Snapshot    string `envconfig:"SNAPSHOT"`
	Compression string `envconfig:"COMPRESSION" default:"lz4"`
	Store       string `envconfig:"STORE" default:"local"`
	StoreDir    string `envconfig:"STORE_DIR" default:"./snapshots"`
	Bucket      string `envconfig:"BUCKET"`
	Prefix      string `envconfig:"PREFIX"`
	Region      string `envconfig:"REGION"`
	Endpoint    string `envconfig:"ENDPOINT"`
	AccessKey   string `envconfig:"ACCESS_KEY"`
	SecretKey   string `envconfig:"SECRET_KEY"`
	Secure      bool   `envconfig:"SECURE" default:"true"`

	PartSize          int64 `envconfig:"PART_SIZE"`
	UploadConcurrency int   `envconfig:"UPLOAD_CONCURRENCY"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig reads the environment, then applies args as flag overrides.
// A missing .env file is not an error.
func LoadConfig(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("FRNN", &cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("frnn", flag.ContinueOnError)
	fs.StringVar(&cfg.Points, "points", cfg.Points, "Parquet file with the indexed points")
	fs.StringVar(&cfg.Queries, "queries", cfg.Queries, "Parquet file with the query points (default: points)")
	fs.StringVar(&cfg.Output, "out", cfg.Output, "Parquet file for the neighbors")
	fs.IntVar(&cfg.NumBatches, "batches", cfg.NumBatches, "Batch count (default: derived from the data)")
	fs.Float64Var(&cfg.Radius, "radius", cfg.Radius, "Search radius")
	fs.StringVar(&cfg.Metric, "metric", cfg.Metric, "Distance metric: L1, L2 or Linf")
	fs.StringVar(&cfg.Precision, "precision", cfg.Precision, "Coordinate type: float32 or float64")
	fs.StringVar(&cfg.IndexWidth, "index", cfg.IndexWidth, "Neighbor index type: int32 or int64")
	fs.Float64Var(&cfg.SizeFactor, "size-factor", cfg.SizeFactor, "Hash table cells per point")
	fs.Int64Var(&cfg.MaxTableSize, "max-table-size", cfg.MaxTableSize, "Maximum hash table cells per batch")
	fs.BoolVar(&cfg.IgnoreQueryPoint, "ignore-query-point", cfg.IgnoreQueryPoint, "Skip the point with the query's index")
	fs.BoolVar(&cfg.ReturnDistances, "distances", cfg.ReturnDistances, "Write neighbor distances")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "Check the result against a brute-force search")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker goroutines (default: GOMAXPROCS)")
	fs.Int64Var(&cfg.MemoryLimit, "memory-limit", cfg.MemoryLimit, "Result memory limit in bytes (0: unlimited)")
	fs.StringVar(&cfg.Snapshot, "snapshot", cfg.Snapshot, "Save the index snapshot under this name")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "Snapshot compression: none, lz4 or zstd")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Snapshot store: local, s3 or minio")
	fs.StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "Directory of the local store")
	fs.StringVar(&cfg.Bucket, "bucket", cfg.Bucket, "Bucket of the s3 or minio store")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Key prefix of the s3 or minio store")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Address to serve Prometheus metrics on")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or text")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Queries == "" {
		cfg.Queries = cfg.Points
	}
	return cfg, nil
}

// Validate checks the configuration and returns the first violation.
func (c *Config) Validate() error {
	if c.Points == "" {
		return ErrMissingPoints
	}
	if !(c.Radius > 0) {
		return ErrInvalidRadius
	}
	if !(c.SizeFactor > 0) {
		return ErrInvalidSizeFactor
	}
	if c.MaxTableSize <= 0 {
		return ErrInvalidTableSize
	}
	if _, err := frnn.ParseMetric(c.Metric); err != nil {
		return err
	}
	if _, err := frnn.ParsePrecision(c.Precision); err != nil {
		return err
	}
	if _, err := frnn.ParseIndexWidth(c.IndexWidth); err != nil {
		return err
	}
	if _, err := frnn.ParseCompression(c.Compression); err != nil {
		return err
	}
	switch c.Store {
	case "local":
	case "s3", "minio":
		if c.Bucket == "" {
			return ErrMissingBucket
		}
	default:
		return ErrInvalidStore
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}

// Logger builds the frnn logger selected by LogFormat and LogLevel.
func (c *Config) Logger() *frnn.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if c.LogFormat == "json" {
		return frnn.NewJSONLogger(level)
	}
	return frnn.NewTextLogger(level)
}
