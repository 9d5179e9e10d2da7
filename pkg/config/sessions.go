package config

import (
	"fmt"
	"time"
)

// SessionsConfig configures session lifecycle.
//
// Sessions live in memory for the process lifetime by default. Setting a
// TTL enables background eviction of sessions idle longer than the TTL.
type SessionsConfig struct {
	// TTL evicts sessions idle longer than this. Zero disables eviction.
	TTL Duration `yaml:"ttl,omitempty" json:"ttl,omitempty" jsonschema:"title=TTL,description=Idle session lifetime (0 disables eviction)"`

	// CleanupInterval is how often the eviction sweep runs.
	// Default: 1m (only relevant when TTL > 0).
	CleanupInterval Duration `yaml:"cleanup_interval,omitempty" json:"cleanup_interval,omitempty" jsonschema:"title=Cleanup Interval,description=Eviction sweep interval"`
}

// SetDefaults applies default values.
func (c *SessionsConfig) SetDefaults() {
	if c.TTL > 0 && c.CleanupInterval == 0 {
		c.CleanupInterval = Duration(time.Minute)
	}
}

// Validate checks the sessions configuration.
func (c *SessionsConfig) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if c.TTL > 0 && c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive when ttl is set")
	}
	return nil
}
