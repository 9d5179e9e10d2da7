package config

import "fmt"

// ToolsConfig configures the built-in tools and any external MCP servers.
type ToolsConfig struct {
	// Projects configures the built-in project management tool.
	Projects ProjectsToolConfig `yaml:"projects,omitempty" json:"projects,omitempty" jsonschema:"title=Projects,description=Built-in project tool configuration"`

	// MCP lists external MCP tool servers to register.
	MCP []MCPServerConfig `yaml:"mcp,omitempty" json:"mcp,omitempty" jsonschema:"title=MCP Servers,description=External MCP tool servers"`
}

// ProjectsToolConfig configures the built-in project tool, which manages
// plain directories under a base path, partitioned by namespace.
type ProjectsToolConfig struct {
	// BaseDir is the root directory for project storage.
	// Default: ./data/projects
	BaseDir string `yaml:"base_dir,omitempty" json:"base_dir,omitempty" jsonschema:"title=Base Directory,description=Root directory for project storage,default=./data/projects"`
}

// MCPServerConfig configures one external MCP tool server.
type MCPServerConfig struct {
	// Name identifies the server; tool names are prefixed with it.
	Name string `yaml:"name" json:"name" jsonschema:"title=Name,description=Server identifier"`

	// Transport specifies the MCP transport (sse, streamable-http, stdio).
	// Default: streamable-http when URL is set, stdio otherwise.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"title=Transport,description=MCP transport,enum=stdio,enum=sse,enum=streamable-http"`

	// URL is the MCP server URL (for HTTP transports).
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=URL,description=Server URL for HTTP transports"`

	// Command for stdio transport.
	Command string `yaml:"command,omitempty" json:"command,omitempty" jsonschema:"title=Command,description=Command to launch for stdio transport"`

	// Args for stdio transport.
	Args []string `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Args,description=Arguments for the stdio command"`

	// Env for stdio transport.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Env,description=Environment for the stdio command"`

	// Enabled toggles the server. Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Whether the server is registered,default=true"`
}

// IsEnabled reports whether the server should be registered.
func (c *MCPServerConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}

// SetDefaults applies default values.
func (c *ToolsConfig) SetDefaults() {
	if c.Projects.BaseDir == "" {
		c.Projects.BaseDir = "./data/projects"
	}

	for i := range c.MCP {
		if c.MCP[i].Transport == "" {
			if c.MCP[i].URL != "" {
				c.MCP[i].Transport = "streamable-http"
			} else {
				c.MCP[i].Transport = "stdio"
			}
		}
	}
}

// Validate checks the tools configuration.
func (c *ToolsConfig) Validate() error {
	seen := make(map[string]bool, len(c.MCP))
	for _, server := range c.MCP {
		if server.Name == "" {
			return fmt.Errorf("mcp server name is required")
		}
		if seen[server.Name] {
			return fmt.Errorf("duplicate mcp server name %q", server.Name)
		}
		seen[server.Name] = true

		switch server.Transport {
		case "stdio":
			if server.Command == "" {
				return fmt.Errorf("mcp server %q: command is required for stdio transport", server.Name)
			}
		case "sse", "streamable-http":
			if server.URL == "" {
				return fmt.Errorf("mcp server %q: url is required for %s transport", server.Name, server.Transport)
			}
		default:
			return fmt.Errorf("mcp server %q: invalid transport %q (valid: stdio, sse, streamable-http)", server.Name, server.Transport)
		}
	}
	return nil
}
