// Package config loads engine settings from an INI file with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"

	"github.com/mevdschee/tqentity/dirty"
	"github.com/mevdschee/tqentity/entity"
)

// Retention selects how snapshots are held between lookups.
const (
	// RetentionTransaction keeps snapshots in a plain map cleared with the
	// unit of work.
	RetentionTransaction = "transaction"
	// RetentionTTL keeps snapshots in a bounded cache with a time to live.
	RetentionTTL = "ttl"
)

// Config holds the engine configuration.
type Config struct {
	Dirty    DirtyConfig
	Batch    BatchConfig
	Snapshot SnapshotConfig
}

// DirtyConfig tunes the change detector.
type DirtyConfig struct {
	Granularity string // off, entity or field
	Strategy    string // instance or value
}

// BatchConfig tunes statement batching.
type BatchConfig struct {
	BatchSize int
	MaxShapes int
}

// SnapshotConfig tunes snapshot retention.
type SnapshotConfig struct {
	Retention string // transaction or ttl
	TTL       time.Duration
	MaxSize   int
}

// Load reads configuration from an INI file with environment variable
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := ini.LooseLoad(path)
	if err != nil {
		return nil, err
	}

	dirtySec := cfg.Section("dirty")
	batchSec := cfg.Section("batch")
	snapSec := cfg.Section("snapshot")

	config := &Config{
		Dirty: DirtyConfig{
			Granularity: dirtySec.Key("granularity").MustString("field"),
			Strategy:    dirtySec.Key("strategy").MustString("value"),
		},
		Batch: BatchConfig{
			BatchSize: batchSec.Key("batch_size").MustInt(100),
			MaxShapes: batchSec.Key("max_shapes").MustInt(5),
		},
		Snapshot: SnapshotConfig{
			Retention: snapSec.Key("retention").MustString(RetentionTransaction),
			TTL:       snapSec.Key("ttl").MustDuration(5 * time.Minute),
			MaxSize:   snapSec.Key("max_size").MustInt(10000),
		},
	}

	// Environment variable overrides
	if v := os.Getenv("TQENTITY_DIRTY_GRANULARITY"); v != "" {
		config.Dirty.Granularity = v
	}
	if v := os.Getenv("TQENTITY_DIRTY_STRATEGY"); v != "" {
		config.Dirty.Strategy = v
	}
	if v := os.Getenv("TQENTITY_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Batch.BatchSize = n
		}
	}
	if v := os.Getenv("TQENTITY_MAX_SHAPES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Batch.MaxShapes = n
		}
	}
	if v := os.Getenv("TQENTITY_SNAPSHOT_RETENTION"); v != "" {
		config.Snapshot.Retention = v
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := c.Granularity(); err != nil {
		return err
	}
	if _, err := c.Strategy(); err != nil {
		return err
	}
	switch c.Snapshot.Retention {
	case RetentionTransaction, RetentionTTL:
	default:
		return fmt.Errorf("config: unknown retention %q", c.Snapshot.Retention)
	}
	return nil
}

// Granularity maps the configured granularity name to the checker setting.
func (c *Config) Granularity() (dirty.Granularity, error) {
	switch c.Dirty.Granularity {
	case "off":
		return dirty.GranularityOff, nil
	case "entity":
		return dirty.GranularityEntity, nil
	case "field":
		return dirty.GranularityField, nil
	}
	return 0, fmt.Errorf("config: unknown granularity %q", c.Dirty.Granularity)
}

// Strategy maps the configured strategy name to the comparison strategy.
func (c *Config) Strategy() (entity.Strategy, error) {
	switch c.Dirty.Strategy {
	case "instance":
		return entity.CompareInstance, nil
	case "value":
		return entity.CompareValue, nil
	}
	return 0, fmt.Errorf("config: unknown strategy %q", c.Dirty.Strategy)
}
