// Package config defines the declarative configuration for the router and
// the loaders that read it from a file or a remote KV store.
//
// Every section follows the same contract: SetDefaults fills unset fields,
// Validate rejects inconsistent values. The loaded Config is immutable after
// ProcessConfigPipeline returns; nothing mutates it at request time.
package config

import (
	"fmt"

	"github.com/kadirpekel/stentor/pkg/observability"
)

// Config is the root configuration document.
type Config struct {
	// Server configures the inbound HTTP listener.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP listener configuration"`

	// LLM configures the chat completion backend shared by agents and the
	// intent analyzer.
	LLM LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Chat completion backend"`

	// Router configures intent analysis: strategy, rules, namespaces.
	Router RouterConfig `yaml:"router,omitempty" json:"router,omitempty" jsonschema:"title=Router,description=Intent analysis configuration"`

	// Validation configures response validation (manual execution gate).
	Validation ValidationConfig `yaml:"validation,omitempty" json:"validation,omitempty" jsonschema:"title=Validation,description=Response validation configuration"`

	// Tools configures the built-in project tool and external MCP servers.
	Tools ToolsConfig `yaml:"tools,omitempty" json:"tools,omitempty" jsonschema:"title=Tools,description=Tool configuration"`

	// Sessions configures session lifecycle.
	Sessions SessionsConfig `yaml:"sessions,omitempty" json:"sessions,omitempty" jsonschema:"title=Sessions,description=Session lifecycle configuration"`

	// Logger configures log level, format and destination.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger,description=Logging configuration"`

	// Observability configures tracing and metrics.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics configuration"`
}

// ProcessConfigPipeline runs the full defaulting and validation pipeline on
// a freshly unmarshaled config.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no config file is
// present. It always validates.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Router.SetDefaults()
	c.Validation.SetDefaults()
	c.Tools.SetDefaults()
	c.Sessions.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and returns the first failure.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if err := c.Router.Validate(); err != nil {
		return fmt.Errorf("router validation failed: %w", err)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation config failed: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools validation failed: %w", err)
	}
	if err := c.Sessions.Validate(); err != nil {
		return fmt.Errorf("sessions validation failed: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability validation failed: %w", err)
	}
	return nil
}
