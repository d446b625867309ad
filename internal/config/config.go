// Package config loads and holds UltraSearch's configuration surface.
//
// Configuration is loaded once from config/config.toml (plus environment
// overrides) into an immutable Snapshot. An IPC ConfigSet request only
// records a pending override; Reload, which the service runs on every
// scheduler tick, applies it and publishes a new Snapshot via atomic.Pointer swap rather
// than mutating shared state in place, per the service's "no ambient
// global state" design rule.
package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Paths holds the on-disk layout roots described in spec §6.
type Paths struct {
	MetaIndexDir    string `toml:"meta_index_dir" mapstructure:"meta_index_dir"`
	ContentIndexDir string `toml:"content_index_dir" mapstructure:"content_index_dir"`
	StateDir        string `toml:"state_dir" mapstructure:"state_dir"`
	LogDir          string `toml:"log_dir" mapstructure:"log_dir"`
	JobsDir         string `toml:"jobs_dir" mapstructure:"jobs_dir"`
}

// Logging holds the recognized logging keys.
type Logging struct {
	Level    string `toml:"level" mapstructure:"level"`
	Format   string `toml:"format" mapstructure:"format"`   // text | json
	Rotation string `toml:"rotation" mapstructure:"rotation"` // daily | size | never
}

// Scheduler holds the recognized scheduler keys.
type Scheduler struct {
	IdleWarmSeconds      int           `toml:"idle_warm_seconds" mapstructure:"idle_warm_seconds"`
	IdleDeepSeconds      int           `toml:"idle_deep_seconds" mapstructure:"idle_deep_seconds"`
	CPUSoftLimitPct      float64       `toml:"cpu_soft_limit_pct" mapstructure:"cpu_soft_limit_pct"`
	CPUHardLimitPct      float64       `toml:"cpu_hard_limit_pct" mapstructure:"cpu_hard_limit_pct"`
	DiskBusyBytesPerSec  uint64        `toml:"disk_busy_bytes_per_s" mapstructure:"disk_busy_bytes_per_s"`
	ContentBatchSize     int           `toml:"content_batch_size" mapstructure:"content_batch_size"`
	MaxBatchBytes        uint64        `toml:"max_batch_bytes" mapstructure:"max_batch_bytes"`
	MaxRecordsPerTick    int           `toml:"max_records_per_tick" mapstructure:"max_records_per_tick"`
	UsnChunkBytes        int           `toml:"usn_chunk_bytes" mapstructure:"usn_chunk_bytes"`
	HysteresisTicks      int           `toml:"hysteresis_ticks" mapstructure:"hysteresis_ticks"`
	ContentWriterLeases  int           `toml:"content_writer_leases" mapstructure:"content_writer_leases"`
	MaxRetries           int           `toml:"max_retries" mapstructure:"max_retries"`
	ShutdownGracePeriod  time.Duration `toml:"shutdown_grace_period" mapstructure:"shutdown_grace_period"`
	TickInterval         time.Duration `toml:"tick_interval" mapstructure:"tick_interval"`
	ContentQueueHighWater int          `toml:"content_queue_high_water" mapstructure:"content_queue_high_water"`
}

// Indexing holds the recognized extractor/indexing keys.
type Indexing struct {
	MaxBytesPerFile   int64    `toml:"max_bytes_per_file" mapstructure:"max_bytes_per_file"`
	MaxCharsPerFile   int      `toml:"max_chars_per_file" mapstructure:"max_chars_per_file"`
	ExtractorsEnabled []string `toml:"extractors_enabled" mapstructure:"extractors_enabled"`
	OCREnabled        bool     `toml:"ocr_enabled" mapstructure:"ocr_enabled"`
	OCRMaxPages       int      `toml:"ocr_max_pages" mapstructure:"ocr_max_pages"`
}

// VolumeSection is a per-volume configuration block keyed by GUID path or
// drive letter in the TOML document, e.g. `[volumes."C:"]`.
type VolumeSection struct {
	IncludePaths    []string `toml:"include_paths" mapstructure:"include_paths"`
	ExcludePaths    []string `toml:"exclude_paths" mapstructure:"exclude_paths"`
	ContentIndexing bool     `toml:"content_indexing" mapstructure:"content_indexing"`
}

// Snapshot is the full, immutable configuration in effect at a point in
// time.
type Snapshot struct {
	Paths     Paths                    `toml:"paths" mapstructure:"paths"`
	Logging   Logging                  `toml:"logging" mapstructure:"logging"`
	Scheduler Scheduler                `toml:"scheduler" mapstructure:"scheduler"`
	Indexing  Indexing                 `toml:"indexing" mapstructure:"indexing"`
	Volumes   map[string]VolumeSection `toml:"volumes" mapstructure:"volumes"`
}

// Get looks up a single dotted config key (e.g. "scheduler.content_batch_size")
// for the IPC ConfigGet request. Returns ok=false for unrecognized keys.
func (s *Snapshot) Get(key string) (any, bool) {
	v := viper.New()
	applyDefaults(v)
	v.Set("paths", s.Paths)
	v.Set("logging", s.Logging)
	v.Set("scheduler", s.Scheduler)
	v.Set("indexing", s.Indexing)
	v.Set("volumes", s.Volumes)
	if !v.IsSet(key) {
		return nil, false
	}
	return v.Get(key), true
}

// EffectiveTOML renders the Snapshot back to TOML, independent of viper,
// so the service can log the fully-resolved configuration (defaults plus
// file plus pending overrides) it actually started with.
func (s *Snapshot) EffectiveTOML() (string, error) {
	b, err := toml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("config: marshaling effective snapshot: %w", err)
	}
	return string(b), nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("paths.meta_index_dir", "index/meta")
	v.SetDefault("paths.content_index_dir", "index/content")
	v.SetDefault("paths.state_dir", "volumes")
	v.SetDefault("paths.log_dir", "log")
	v.SetDefault("paths.jobs_dir", "jobs")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.rotation", "daily")

	v.SetDefault("scheduler.idle_warm_seconds", 15)
	v.SetDefault("scheduler.idle_deep_seconds", 60)
	v.SetDefault("scheduler.cpu_soft_limit_pct", 20.0)
	v.SetDefault("scheduler.cpu_hard_limit_pct", 50.0)
	v.SetDefault("scheduler.disk_busy_bytes_per_s", 50*1024*1024)
	v.SetDefault("scheduler.content_batch_size", 1000)
	v.SetDefault("scheduler.max_batch_bytes", 256*1024*1024)
	v.SetDefault("scheduler.max_records_per_tick", 10000)
	v.SetDefault("scheduler.usn_chunk_bytes", 1<<20)
	v.SetDefault("scheduler.hysteresis_ticks", 3)
	v.SetDefault("scheduler.content_writer_leases", 1)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.shutdown_grace_period", 10*time.Second)
	v.SetDefault("scheduler.tick_interval", time.Second)
	v.SetDefault("scheduler.content_queue_high_water", 200000)

	v.SetDefault("indexing.max_bytes_per_file", 32*1024*1024)
	v.SetDefault("indexing.max_chars_per_file", 150000)
	v.SetDefault("indexing.extractors_enabled", []string{"plaintext", "general-document", "ocr"})
	v.SetDefault("indexing.ocr_enabled", false)
	v.SetDefault("indexing.ocr_max_pages", 20)
}

// Load reads config.toml from the given directory (falling back to
// defaults for anything absent) and returns an immutable Snapshot.
func Load(configDir string) (*Snapshot, error) {
	_, snap, err := load(configDir, nil)
	return snap, err
}

// load builds the viper instance for configDir, applying any dotted-key
// overrides on top of the file contents, and unmarshals+validates the
// result.
func load(configDir string, overrides map[string]string) (*viper.Viper, *Snapshot, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, nil, fmt.Errorf("config: reading config.toml: %w", err)
		}
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	var snap Snapshot
	if err := v.Unmarshal(&snap); err != nil {
		return nil, nil, fmt.Errorf("config: decoding config.toml: %w", err)
	}
	if snap.Volumes == nil {
		snap.Volumes = map[string]VolumeSection{}
	}
	if err := validate(&snap); err != nil {
		return nil, nil, err
	}
	return v, &snap, nil
}

func validate(s *Snapshot) error {
	switch s.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid logging.format %q (want text|json)", s.Logging.Format)
	}
	switch s.Logging.Rotation {
	case "daily", "size", "never":
	default:
		return fmt.Errorf("config: invalid logging.rotation %q (want daily|size|never)", s.Logging.Rotation)
	}
	if s.Scheduler.CPUSoftLimitPct >= s.Scheduler.CPUHardLimitPct {
		return fmt.Errorf("config: scheduler.cpu_soft_limit_pct must be < cpu_hard_limit_pct")
	}
	if s.Scheduler.ContentBatchSize <= 0 {
		return fmt.Errorf("config: scheduler.content_batch_size must be > 0")
	}
	return nil
}
