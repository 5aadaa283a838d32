package health_monitor_config

import (
	"time"

	pginfra "github.com/NordCoder/Healthwatch/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Storage struct {
	Driver string `mapstructure:"driver"`
}

type Kafka struct {
	Enable            bool          `mapstructure:"enable"`
	Brokers           []string      `mapstructure:"brokers"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ConnectAttempts   int           `mapstructure:"connect_attempts"`
}

type Outbox struct {
	Enable        bool          `mapstructure:"enable"`
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	Wait          time.Duration `mapstructure:"wait"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Monitor struct {
	Interval         time.Duration `mapstructure:"interval"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
	WindowSize       int           `mapstructure:"window_size"`
	WindowTTL        time.Duration `mapstructure:"window_ttl"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SnapshotTTL      time.Duration `mapstructure:"snapshot_ttl"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
	PruneEvery       time.Duration `mapstructure:"prune_every"`
	UserAgent        string        `mapstructure:"user_agent"`
}

type Service struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`
	URL         string `mapstructure:"url"`
	HealthPath  string `mapstructure:"health_path"`
}

type Server struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTel struct {
	Enable       bool    `mapstructure:"enable"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
}

type Config struct {
	App      App            `mapstructure:"app"`
	Log      Log            `mapstructure:"log"`
	DB       pginfra.Config `mapstructure:"db"`
	Storage  Storage        `mapstructure:"storage"`
	Kafka    Kafka          `mapstructure:"kafka"`
	Outbox   Outbox         `mapstructure:"outbox"`
	Monitor  Monitor        `mapstructure:"monitor"`
	Services []Service      `mapstructure:"services"`
	Server   Server         `mapstructure:"server"`
	OTel     OTel           `mapstructure:"otel"`
}
