package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the effective, fully-resolved configuration for every
// component this repository runs: the engine itself, the TCP front-end, the
// admin HTTP surface, and the retention scheduler.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Frontend  FrontendConfig  `yaml:"frontend"`
	Admin     AdminConfig     `yaml:"admin"`
	Retention RetentionConfig `yaml:"retention"`
}

// EngineConfig is the commit log engine's configuration.
type EngineConfig struct {
	LogDir              string    `yaml:"log_dir"`
	IndexMaxItems       int       `yaml:"index_max_items"`
	SegmentMaxBytes     SizeBytes `yaml:"segment_max_bytes"`
	FlushInterval       Duration  `yaml:"flush_interval"`
	PoolCapacity        int       `yaml:"pool_capacity"`
	PoolBufInitialBytes SizeBytes `yaml:"pool_buf_initial_bytes"`
}

// FrontendConfig is the TCP connection front-end's configuration.
type FrontendConfig struct {
	Address           string  `yaml:"address"`
	MaxRequestsPerSec float64 `yaml:"max_requests_per_sec"`
	MaxRequestsBurst  int     `yaml:"max_requests_burst"`
}

// AdminConfig is the observability HTTP surface's configuration.
type AdminConfig struct {
	Address string `yaml:"address"`
	DocsDir string `yaml:"docs_dir"`
}

// RetentionConfig is the cron-scheduled segment bookkeeping job's
// configuration.
type RetentionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Cron         string `yaml:"cron"`
	KeepSegments int    `yaml:"keep_segments"`
}

// Default returns the documented defaults for every component.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			LogDir:              "log",
			IndexMaxItems:       10_000_000,
			SegmentMaxBytes:     SizeBytes(1_024_000_000),
			FlushInterval:       Duration(time.Second),
			PoolCapacity:        30,
			PoolBufInitialBytes: SizeBytes(16_384),
		},
		Frontend: FrontendConfig{
			Address:           ":9092",
			MaxRequestsPerSec: 0,
			MaxRequestsBurst:  64,
		},
		Admin: AdminConfig{
			Address: ":9093",
			DocsDir: "./docs",
		},
		Retention: RetentionConfig{
			Enabled:      false,
			Cron:         "0 2 * * *",
			KeepSegments: 100,
		},
	}
}

// SizeBytes is a byte count unmarshaled from human-friendly strings like
// "64MB" as well as plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration for YAML parsing from strings like "100ms"
// or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
