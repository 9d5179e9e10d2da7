package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/consul"
	"github.com/knadh/koanf/providers/etcd"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigType identifies the configuration source.
type ConfigType string

const (
	ConfigTypeFile      ConfigType = "file"
	ConfigTypeConsul    ConfigType = "consul"
	ConfigTypeEtcd      ConfigType = "etcd"
	ConfigTypeZookeeper ConfigType = "zookeeper"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Type of the config source. Default: file
	Type ConfigType

	// Path is the file path or remote key.
	Path string

	// Endpoints for remote sources (consul, etcd, zookeeper).
	Endpoints []string

	// Watch enables reload on change.
	Watch bool

	// OnChange receives each successfully reloaded config.
	OnChange func(*Config) error
}

// Loader reads and optionally watches a config source.
type Loader struct {
	options LoaderOptions
	parser  *yaml.YAML

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closers []func()
}

// NewLoader creates a Loader for the given options.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Type == "" {
		opts.Type = ConfigTypeFile
	}

	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	if len(opts.Endpoints) == 0 {
		switch opts.Type {
		case ConfigTypeConsul:
			opts.Endpoints = []string{"localhost:8500"}
		case ConfigTypeEtcd:
			opts.Endpoints = []string{"localhost:2379"}
		case ConfigTypeZookeeper:
			opts.Endpoints = []string{"localhost:2181"}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Loader{
		options: opts,
		parser:  yaml.Parser(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Load reads the source once and, if Watch is set, starts watching it.
func (l *Loader) Load() (*Config, error) {
	provider, err := l.newProvider()
	if err != nil {
		return nil, err
	}

	cfg, err := l.loadFrom(provider)
	if err != nil {
		return nil, err
	}

	if l.options.Watch {
		go l.watch(provider)
	}

	return cfg, nil
}

// newProvider constructs the koanf provider for the configured source.
func (l *Loader) newProvider() (koanf.Provider, error) {
	switch l.options.Type {
	case ConfigTypeFile:
		return file.Provider(l.options.Path), nil

	case ConfigTypeConsul:
		consulConfig := api.DefaultConfig()
		consulConfig.Address = l.options.Endpoints[0]

		return consul.Provider(consul.Config{
			Cfg: consulConfig,
			Key: l.options.Path,
		}), nil

	case ConfigTypeEtcd:
		return etcd.Provider(etcd.Config{
			Endpoints:   l.options.Endpoints,
			DialTimeout: 5 * time.Second,
			Key:         l.options.Path,
		}), nil

	case ConfigTypeZookeeper:
		zkProvider, err := NewZookeeperProvider(l.options.Endpoints, l.options.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create zookeeper provider: %w", err)
		}
		l.addCloser(zkProvider.Close)
		return zkProvider, nil

	default:
		return nil, fmt.Errorf("unsupported config type: %s", l.options.Type)
	}
}

// parserFor returns the byte parser for the source. Consul and etcd values
// arrive as key/value maps and need none; file and zookeeper carry raw YAML.
func (l *Loader) parserFor() koanf.Parser {
	if l.options.Type == ConfigTypeFile || l.options.Type == ConfigTypeZookeeper {
		return l.parser
	}
	return nil
}

// loadFrom runs the full pipeline against a provider: read, expand env
// vars, strict-validate, unmarshal, default and validate. Each load uses a
// fresh koanf instance so keys removed from the source disappear on reload.
func (l *Loader) loadFrom(provider koanf.Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(provider, l.parserFor()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Type, err)
	}

	expanded, ok := ExpandEnvVarsInData(k.Raw()).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected type after env var expansion")
	}

	k = koanf.New(".")
	if err := k.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load expanded config: %w", err)
	}

	strictResult, err := ValidateConfigStructure(k)
	if err != nil {
		return nil, fmt.Errorf("strict validation check failed: %w", err)
	}
	if !strictResult.Valid() {
		return nil, fmt.Errorf("configuration has structural errors:\n%s", strictResult.FormatErrors())
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return ProcessConfigPipeline(cfg)
}

// Watcher is the change notification interface the remote koanf providers
// implement.
type Watcher interface {
	Watch(cb func(event interface{}, err error)) error
}

func (l *Loader) watch(provider koanf.Provider) {
	if l.options.Type == ConfigTypeFile {
		// File sources use the debounced fsnotify watcher rather than the
		// provider's own watch, which fires once per write syscall.
		if err := watchFile(l.ctx, l.options.Path, func() { l.reload(provider) }); err != nil {
			slog.Warn("Failed to start config file watcher", "path", l.options.Path, "error", err)
		}
		return
	}

	watcher, ok := provider.(Watcher)
	if !ok {
		slog.Warn("Config provider does not support watching", "source", l.options.Type)
		return
	}

	slog.Info("Config watcher started", "source", l.options.Type)

	err := watcher.Watch(func(event interface{}, err error) {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		if err != nil {
			slog.Warn("Config watch error", "source", l.options.Type, "error", err)
			return
		}

		l.reload(provider)
	})
	if err != nil {
		slog.Warn("Config watch stopped", "source", l.options.Type, "error", err)
	}
}

func (l *Loader) reload(provider koanf.Provider) {
	newCfg, err := l.loadFrom(provider)
	if err != nil {
		slog.Warn("Config reload failed, keeping previous config", "source", l.options.Type, "error", err)
		return
	}

	if l.options.OnChange == nil {
		slog.Warn("Config change detected but no reload handler registered", "source", l.options.Type)
		return
	}

	if err := l.options.OnChange(newCfg); err != nil {
		slog.Warn("Config change handler failed", "source", l.options.Type, "error", err)
		return
	}

	slog.Info("Configuration reloaded", "source", l.options.Type)
}

func (l *Loader) addCloser(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closers = append(l.closers, fn)
}

// SetOnChange registers the reload handler.
func (l *Loader) SetOnChange(callback func(*Config) error) {
	l.options.OnChange = callback
}

// Stop cancels watching and releases provider resources.
func (l *Loader) Stop() {
	l.cancel()

	l.mu.Lock()
	closers := l.closers
	l.closers = nil
	l.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
}

// LoadConfig loads a config without keeping the loader around.
func LoadConfig(opts LoaderOptions) (*Config, error) {
	cfg, _, err := LoadConfigWithLoader(opts)
	return cfg, err
}

// LoadConfigWithLoader loads a config and returns the loader for watching.
func LoadConfigWithLoader(opts LoaderOptions) (*Config, *Loader, error) {
	loader, err := NewLoader(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create loader: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		loader.Stop()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, loader, nil
}

// ParseConfigType converts a string to a ConfigType.
func ParseConfigType(s string) (ConfigType, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "file":
		return ConfigTypeFile, nil
	case "consul":
		return ConfigTypeConsul, nil
	case "etcd":
		return ConfigTypeEtcd, nil
	case "zookeeper", "zk":
		return ConfigTypeZookeeper, nil
	default:
		return "", fmt.Errorf("invalid config type: %s (valid types: file, consul, etcd, zookeeper)", s)
	}
}
