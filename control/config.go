// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool and port tuning, loadable from a yaml file, with hot-reload
// listener propagation for the knobs that can change at runtime.

package control

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config carries the tunables of one graph execution.
type Config struct {
	// PoolQuantum is the slab size of pooled buffer allocations.
	PoolQuantum int `yaml:"pool_quantum"`

	// PoolCapacity is the per-port ceiling on pooled allocations.
	PoolCapacity int `yaml:"pool_capacity"`

	// TokenCapacity bounds in-flight asynchronous messages per port.
	TokenCapacity int `yaml:"token_capacity"`

	// LocalDepth bounds each port's local chunk cache.
	LocalDepth int `yaml:"local_depth"`

	// QueueDepth bounds each subscriber's delivery queue.
	QueueDepth int `yaml:"queue_depth"`
}

// DefaultConfig returns the tuning used when no file is given.
func DefaultConfig() Config {
	return Config{
		PoolQuantum:   64 * 1024,
		PoolCapacity:  16,
		TokenCapacity: 16,
		LocalDepth:    4,
		QueueDepth:    1024,
	}
}

// LoadConfig reads a yaml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects tunings no manager could honor.
func (c Config) Validate() error {
	if c.PoolQuantum <= 0 {
		return fmt.Errorf("pool_quantum must be positive, got %d", c.PoolQuantum)
	}
	if c.PoolCapacity <= 0 {
		return fmt.Errorf("pool_capacity must be positive, got %d", c.PoolCapacity)
	}
	if c.TokenCapacity <= 0 {
		return fmt.Errorf("token_capacity must be positive, got %d", c.TokenCapacity)
	}
	if c.LocalDepth < 0 {
		return fmt.Errorf("local_depth must not be negative, got %d", c.LocalDepth)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	return nil
}

// Store holds the current config and notifies listeners on replacement.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	listeners []func(Config)
}

// NewStore initializes a store with the given config.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns the current config.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a new config and dispatches reload listeners.
func (s *Store) Replace(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	listeners := append([]func(Config){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// OnReload registers a listener invoked after each Replace.
func (s *Store) OnReload(fn func(Config)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
