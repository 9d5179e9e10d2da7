package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/observability"
	"github.com/kadirpekel/stentor/pkg/transport"
)

// ServeCmd starts the router server.
type ServeCmd struct {
	// Zero-config overrides, used when no config file is given.
	Model   string `help:"Model name."`
	APIKey  string `name:"api-key" help:"API key (defaults to environment variable)."`
	BaseURL string `name:"base-url" help:"Chat completion backend base URL."`

	// Server options
	Host string `help:"Host to bind."`
	Port int    `help:"Port to listen on." default:"0"`

	// Config source options
	Source    string `help:"Config source: file, consul, etcd, zookeeper." default:"file" enum:"file,consul,etcd,zookeeper"`
	Endpoints string `help:"Remote config endpoints (comma-separated)." placeholder:"HOST:PORT,..."`
	Watch     bool   `help:"Watch the config source and hot-reload the pipeline."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := c.loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Stop()
	}
	c.applyOverrides(cfg)

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	srv, err := transport.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if loader != nil {
		loader.SetOnChange(func(newCfg *config.Config) error {
			c.applyOverrides(newCfg)
			return srv.Reload(newCfg)
		})
	}

	fmt.Printf("Stentor ready on %s\n", cfg.Server.Address())
	fmt.Printf("   Completions: http://%s/v1/chat/completions\n", cfg.Server.Address())
	fmt.Printf("   Health:      http://%s/health\n", cfg.Server.Address())
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:     http://%s/metrics\n", cfg.Server.Address())
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

// loadConfig reads the config source, or falls back to the built-in default
// config when no path is given.
func (c *ServeCmd) loadConfig(configPath string) (*config.Config, *config.Loader, error) {
	if configPath == "" && c.Source == "file" {
		slog.Info("No config file given, using built-in defaults")
		return config.Default(), nil, nil
	}

	opts := config.LoaderOptions{
		Type:  config.ConfigType(c.Source),
		Path:  configPath,
		Watch: c.Watch,
	}
	if c.Endpoints != "" {
		opts.Endpoints = strings.Split(c.Endpoints, ",")
	}

	cfg, loader, err := config.LoadConfigWithLoader(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Loaded configuration", "source", c.Source, "path", configPath, "watch", c.Watch)
	return cfg, loader, nil
}

// applyOverrides layers the CLI flags over a loaded config. Overrides win on
// every load so a hot reload cannot silently undo them.
func (c *ServeCmd) applyOverrides(cfg *config.Config) {
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if c.APIKey != "" {
		cfg.LLM.APIKey = c.APIKey
	}
	if c.BaseURL != "" {
		cfg.LLM.BaseURL = c.BaseURL
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
}
