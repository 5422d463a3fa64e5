package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// IngestConfig holds batching and flush settings for the ingestion pipeline.
type IngestConfig struct {
	// BatchSize is the record-count threshold that seals a batch.
	BatchSize int `yaml:"batch_size" env:"INGEST_BATCH_SIZE" env-default:"500"`
	// FlushWorkers bounds the background workers draining the flush queue.
	FlushWorkers int `yaml:"flush_workers" env:"INGEST_FLUSH_WORKERS" env-default:"4"`
	// QueueCapacity bounds the flush queue; a sealing producer blocks when
	// the queue is full.
	QueueCapacity int `yaml:"queue_capacity" env:"INGEST_QUEUE_CAPACITY" env-default:"64"`
	// MergeConcurrency bounds how many sources are merged at once.
	MergeConcurrency int `yaml:"merge_concurrency" env:"INGEST_MERGE_CONCURRENCY" env-default:"2"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// MetricsConfig holds the optional Prometheus listener settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the listener.
	Addr string `yaml:"addr" env:"METRICS_ADDR" env-default:""`
}
