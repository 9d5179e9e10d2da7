package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Pipeline
// ============================================================================

func TestProcessConfigPipeline_NilConfig(t *testing.T) {
	_, err := ProcessConfigPipeline(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestProcessConfigPipeline_EmptyConfigGetsDefaults(t *testing.T) {
	cfg, err := ProcessConfigPipeline(&Config{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "test", cfg.Router.DefaultNamespace)
	assert.Equal(t, 50, cfg.Validation.MinResponseLength)
	assert.Equal(t, "./data/projects", cfg.Tools.Projects.BaseDir)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestDefault_AlwaysValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

// ============================================================================
// Server
// ============================================================================

func TestServerConfig_Defaults(t *testing.T) {
	c := ServerConfig{}
	c.SetDefaults()

	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, Duration(30*time.Second), c.ReadTimeout)
	assert.Equal(t, Duration(0), c.WriteTimeout, "write timeout stays zero for streaming")
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, "0.0.0.0:8080", c.Address())
}

func TestServerConfig_InvalidPort(t *testing.T) {
	c := ServerConfig{Port: 70000}
	c.SetDefaults()
	assert.Error(t, c.Validate())
}

// ============================================================================
// LLM
// ============================================================================

func TestLLMConfig_OllamaDefaults(t *testing.T) {
	c := LLMConfig{Provider: LLMProviderOllama}
	c.SetDefaults()

	assert.Equal(t, "llama3.1", c.Model)
	assert.NotEmpty(t, c.BaseURL)
	assert.Equal(t, 4096, c.MaxTokens)
	assert.Equal(t, Duration(60*time.Second), c.Timeout)
	assert.Equal(t, DefaultToolModels, c.ToolModels)

	// Ollama needs no API key
	require.NoError(t, c.Validate())
}

func TestLLMConfig_OpenAIRequiresKey(t *testing.T) {
	c := LLMConfig{Provider: LLMProviderOpenAI, Model: "gpt-4o"}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestLLMConfig_InvalidProvider(t *testing.T) {
	c := LLMConfig{Provider: "anthropic"}
	assert.Error(t, c.Validate())
}

func TestLLMConfig_TemperatureBounds(t *testing.T) {
	temp := 3.0
	c := LLMConfig{Provider: LLMProviderOllama, Temperature: &temp}
	assert.Error(t, c.Validate())
}

// ============================================================================
// Sessions
// ============================================================================

func TestSessionsConfig_TTLDefaultsCleanupInterval(t *testing.T) {
	c := SessionsConfig{TTL: Duration(5 * time.Minute)}
	c.SetDefaults()

	assert.Equal(t, Duration(time.Minute), c.CleanupInterval)
	require.NoError(t, c.Validate())
}

func TestSessionsConfig_ZeroTTLNeedsNoCleanup(t *testing.T) {
	c := SessionsConfig{}
	c.SetDefaults()

	assert.Equal(t, Duration(0), c.CleanupInterval)
	require.NoError(t, c.Validate())
}

// ============================================================================
// Validation section
// ============================================================================

func TestValidationConfig_Defaults(t *testing.T) {
	c := ValidationConfig{}
	c.SetDefaults()

	assert.True(t, BoolValue(c.Enabled, false))
	assert.Contains(t, c.TriggerKeywords, "project")
	assert.Contains(t, c.TriggerKeywords, "namespace")
	assert.Equal(t, 50, c.MinResponseLength)
	assert.NotEmpty(t, c.TemplateIndicators)
	assert.NotEmpty(t, c.InabilityPhrases)
	assert.Contains(t, c.HallucinationIndicators, "project 1")
	assert.True(t, BoolValue(c.EnableHallucinationDetection, false))
	assert.True(t, BoolValue(c.EnableCountQueryValidation, false))
}

func TestValidationConfig_CustomListsPreserved(t *testing.T) {
	c := ValidationConfig{TriggerKeywords: []string{"deploy"}}
	c.SetDefaults()
	assert.Equal(t, []string{"deploy"}, c.TriggerKeywords)
}

// ============================================================================
// Tools
// ============================================================================

func TestToolsConfig_MCPValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ToolsConfig
		wantErr string
	}{
		{
			name: "stdio_needs_command",
			cfg: ToolsConfig{MCP: []MCPServerConfig{
				{Name: "local", Transport: "stdio"},
			}},
			wantErr: "command is required",
		},
		{
			name: "http_needs_url",
			cfg: ToolsConfig{MCP: []MCPServerConfig{
				{Name: "remote", Transport: "sse"},
			}},
			wantErr: "url is required",
		},
		{
			name: "duplicate_names",
			cfg: ToolsConfig{MCP: []MCPServerConfig{
				{Name: "a", Transport: "stdio", Command: "srv"},
				{Name: "a", Transport: "stdio", Command: "srv"},
			}},
			wantErr: "duplicate mcp server name",
		},
		{
			name: "valid_http",
			cfg: ToolsConfig{MCP: []MCPServerConfig{
				{Name: "remote", URL: "http://localhost:3000/mcp"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SetDefaults()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestToolsConfig_TransportDefaults(t *testing.T) {
	c := ToolsConfig{MCP: []MCPServerConfig{
		{Name: "remote", URL: "http://localhost:3000/mcp"},
		{Name: "local", Command: "mcp-server"},
	}}
	c.SetDefaults()

	assert.Equal(t, "streamable-http", c.MCP[0].Transport)
	assert.Equal(t, "stdio", c.MCP[1].Transport)
}

// ============================================================================
// Duration
// ============================================================================

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
