// Package config loads the YAML configuration cmd/scrapequeue runs
// against, mapping the fields spec.md §6 enumerates onto a
// queue.Config plus the connection strings the store and bus need.
// WaitMode and ChannelID are loaded and defaulted but are not part of
// queue.Config.
// Grounded on ChuLiYu-raft-recovery's internal/cli.Config: a single
// struct tagged with `yaml:"..."`, loaded with gopkg.in/yaml.v3 by
// reading the whole file and unmarshalling it in one call.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/store"
)

// ConcurrencyLimit mirrors store.ConcurrencyLimit with YAML-friendly
// string values ("off", "per-owner", "per-owner-per-group") instead
// of the small-int enum the store package uses internally.
type ConcurrencyLimit string

const (
	ConcurrencyOff              ConcurrencyLimit = "off"
	ConcurrencyPerOwner         ConcurrencyLimit = "per-owner"
	ConcurrencyPerOwnerPerGroup ConcurrencyLimit = "per-owner-per-group"
)

// ToStore converts c to the store.ConcurrencyLimit enum Dispatch
// expects. An unrecognized or empty value falls back to
// store.ConcurrencyOff, which enforces no ceiling.
func (c ConcurrencyLimit) ToStore() store.ConcurrencyLimit {
	switch c {
	case ConcurrencyPerOwner:
		return store.ConcurrencyPerOwner
	case ConcurrencyPerOwnerPerGroup:
		return store.ConcurrencyPerOwnerPerGroup
	default:
		return store.ConcurrencyOff
	}
}

// WaitMode names which waiter backend (waiter.Poller or
// waiter.Listener) learns that a job finished. QueueConfig does not
// carry it; a caller building a waiter reads it from Config directly.
type WaitMode string

const (
	// WaitPoll re-reads the store on an interval.
	WaitPoll WaitMode = "poll"
	// WaitListen subscribes to a notification channel (DB LISTEN/NOTIFY
	// or bus fan-out) and only falls back to a read on wake.
	WaitListen WaitMode = "listen"
)

// Config is the top-level shape of a scrapequeue YAML config file.
type Config struct {
	Queue struct {
		// Name is this queue's logical name (spec.md §6: scopes bus
		// queue names and the DB NOTIFY channel).
		Name string `yaml:"name"`

		// ConcurrencyLimit selects which ceilings Dispatch enforces.
		ConcurrencyLimit ConcurrencyLimit `yaml:"concurrency_limit"`

		// WaitMode selects the Waiter backend. Empty means "auto":
		// listen if Bus.URL is set, poll otherwise, per spec.md §6
		// ("Automatically listen when a bus URL is configured").
		WaitMode WaitMode `yaml:"wait_mode"`

		// LeaseTTLMs is the visibility timeout assigned to dispatched
		// jobs, in milliseconds. Default 60000 (spec.md §6).
		LeaseTTLMs int `yaml:"lease_ttl_ms"`

		// PrefetchBatch caps jobs pulled per Dispatcher tick. Default
		// 100 (spec.md §6).
		PrefetchBatch int `yaml:"prefetch_batch"`

		// PrefetchIntervalMs governs how often Dispatcher's background
		// loop runs. spec.md §9 suggests "a small sleep (~250ms)".
		PrefetchIntervalMs int `yaml:"prefetch_interval_ms"`

		// ChannelID identifies this process for completion fan-out.
		// Default "main" (spec.md §6).
		ChannelID string `yaml:"channel_id"`

		// ReapIntervalMs and GroupSweepIntervalMs govern the Reaper
		// and GroupSweeper background tasks.
		ReapIntervalMs       int `yaml:"reap_interval_ms"`
		GroupSweepIntervalMs int `yaml:"group_sweep_interval_ms"`

		// RetentionIntervalMs/RetentionAgeMs govern the short
		// terminal-job retention sweep. RetentionAgeMs <= 0 disables
		// it entirely.
		RetentionIntervalMs int `yaml:"retention_interval_ms"`
		RetentionAgeMs      int `yaml:"retention_age_ms"`
	} `yaml:"queue"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Bus struct {
		// URL is an AMQP connection string. Empty disables the
		// Prefetch Bridge and bus-backed Listener entirely; the Queue
		// falls back to polling for both dispatch and wait.
		URL string `yaml:"url"`
	} `yaml:"bus"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Queue.Name == "" {
		c.Queue.Name = "scrapequeue"
	}
	if c.Queue.LeaseTTLMs == 0 {
		c.Queue.LeaseTTLMs = 60_000
	}
	if c.Queue.PrefetchBatch == 0 {
		c.Queue.PrefetchBatch = 100
	}
	if c.Queue.PrefetchIntervalMs == 0 {
		c.Queue.PrefetchIntervalMs = 250
	}
	if c.Queue.ChannelID == "" {
		c.Queue.ChannelID = "main"
	}
	if c.Queue.ReapIntervalMs == 0 {
		c.Queue.ReapIntervalMs = 5_000
	}
	if c.Queue.GroupSweepIntervalMs == 0 {
		c.Queue.GroupSweepIntervalMs = 30_000
	}
	if c.Queue.RetentionIntervalMs == 0 {
		c.Queue.RetentionIntervalMs = 60_000
	}
	if c.Queue.WaitMode == "" {
		if c.Bus.URL != "" {
			c.Queue.WaitMode = WaitListen
		} else {
			c.Queue.WaitMode = WaitPoll
		}
	}
}

// QueueConfig converts the YAML-facing fields into the queue.Config
// Queue.New expects.
func (c *Config) QueueConfig() queue.Config {
	return queue.Config{
		Name:               c.Queue.Name,
		Limit:              c.Queue.ConcurrencyLimit.ToStore(),
		Lease:              time.Duration(c.Queue.LeaseTTLMs) * time.Millisecond,
		PrefetchInterval:   time.Duration(c.Queue.PrefetchIntervalMs) * time.Millisecond,
		PrefetchBatch:      c.Queue.PrefetchBatch,
		ReapInterval:       time.Duration(c.Queue.ReapIntervalMs) * time.Millisecond,
		GroupSweepInterval: time.Duration(c.Queue.GroupSweepIntervalMs) * time.Millisecond,
		RetentionInterval:  time.Duration(c.Queue.RetentionIntervalMs) * time.Millisecond,
		RetentionAge:       time.Duration(c.Queue.RetentionAgeMs) * time.Millisecond,
	}
}
