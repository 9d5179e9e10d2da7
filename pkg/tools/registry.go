package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/llms"
	"github.com/kadirpekel/stentor/pkg/registry"
)

// Seeder populates an empty registry with the configured tool set.
type Seeder func(ctx context.Context, r *Registry) error

// Registry is the process-wide name -> tool map. It is seeded lazily by
// the first request that needs tools: initialization is serialized, a
// repeat call is a no-op, and a failed attempt leaves the registry empty
// so a later request can retry.
type Registry struct {
	*registry.BaseRegistry[Tool]

	ready     atomic.Bool
	initGroup singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
	}
}

// Initialize seeds the registry if it has not been seeded yet. Concurrent
// callers share a single seeding attempt and its outcome.
func (r *Registry) Initialize(ctx context.Context, seed Seeder) error {
	if r.ready.Load() {
		return nil
	}

	_, err, _ := r.initGroup.Do("init", func() (interface{}, error) {
		if r.ready.Load() {
			return nil, nil
		}
		if seed != nil {
			if err := seed(ctx, r); err != nil {
				r.Clear()
				return nil, NewToolError("ToolRegistry", "Initialize", "tool registration failed", err)
			}
		}
		r.ready.Store(true)
		return nil, nil
	})
	return err
}

// Ready reports whether a seeding attempt has completed successfully.
func (r *Registry) Ready() bool {
	return r.ready.Load()
}

// RegisterTool registers a tool under its own name. Registering a second
// tool under the same name replaces the first.
func (r *Registry) RegisterTool(t Tool) error {
	name := t.GetName()
	if name == "" {
		return NewToolError("ToolRegistry", "RegisterTool", "tool name cannot be empty", nil)
	}
	return r.Register(name, t)
}

// GetTool resolves a tool by name. The returned error matches
// errors.Is(err, ErrToolNotFound) when the name has no registration.
func (r *Registry) GetTool(name string) (Tool, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, NewToolError("ToolRegistry", "GetTool",
			fmt.Sprintf("tool %q not registered", name), ErrToolNotFound)
	}
	return tool, nil
}

// Definitions returns the registered tools as model-facing declarations,
// sorted by name.
func (r *Registry) Definitions() []llms.ToolDefinition {
	names := r.Names()
	defs := make([]llms.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool, exists := r.Get(name)
		if !exists {
			continue
		}
		defs = append(defs, llms.ToolDefinition{
			Name:        name,
			Description: tool.GetDescription(),
			Parameters:  tool.GetSchema().Input,
		})
	}
	return defs
}

// HealthCheckAll runs every registered tool's self-check.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]bool {
	health := make(map[string]bool)
	for _, name := range r.Names() {
		tool, exists := r.Get(name)
		if !exists {
			continue
		}
		health[name] = tool.HealthCheck(ctx)
	}
	return health
}

// NewSeeder builds the seeder for the configured tool set: the built-in
// projects tool plus any enabled MCP servers. An unreachable MCP server is
// logged and skipped rather than failing the whole registry.
func NewSeeder(cfg *config.ToolsConfig) Seeder {
	return func(ctx context.Context, r *Registry) error {
		if cfg == nil {
			cfg = &config.ToolsConfig{}
			cfg.SetDefaults()
		}

		projects, err := NewProjectsTool(cfg.Projects.BaseDir)
		if err != nil {
			return fmt.Errorf("failed to create projects tool: %w", err)
		}
		if err := r.RegisterTool(projects); err != nil {
			return err
		}

		for _, server := range cfg.MCP {
			if !server.IsEnabled() {
				continue
			}
			source := NewMCPSource(server)
			if err := source.RegisterInto(ctx, r); err != nil {
				slog.Warn("Failed to register MCP source", "source", server.Name, "error", err)
			}
		}
		return nil
	}
}
