package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/llms"
	"github.com/kadirpekel/stentor/pkg/tools"
)

// scriptedProvider returns canned replies and records the messages it saw.
type scriptedProvider struct {
	model string
	reply string
	err   error

	mu           sync.Mutex
	calls        int
	lastMessages []llms.Message
	lastTools    []llms.ToolDefinition
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (string, []llms.ToolCall, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastMessages = messages
	p.lastTools = defs
	if p.err != nil {
		return "", nil, 0, p.err
	}
	return p.reply, nil, 5, nil
}

func (p *scriptedProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk)
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) GetModelName() string {
	if p.model == "" {
		return "test-model"
	}
	return p.model
}
func (p *scriptedProvider) GetMaxTokens() int       { return 1000 }
func (p *scriptedProvider) GetTemperature() float64 { return 0.7 }
func (p *scriptedProvider) Close() error            { return nil }

func TestSupportsNativeTools(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		expected bool
	}{
		{"allowlisted base model", "llama3.1", true},
		{"allowlisted with tag", "llama3.1:8b-instruct", true},
		{"allowlisted mixed case", "Hermes3", true},
		{"not allowlisted", "gemma2", false},
		{"empty model", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SupportsNativeTools(tt.model, config.DefaultToolModels)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAgent_ModeSelection(t *testing.T) {
	toolModels := config.DefaultToolModels

	a := NewWithProvider(&scriptedProvider{model: "llama3.1"}, nil, toolModels)
	assert.Equal(t, ModeTools, a.Mode())

	a = NewWithProvider(&scriptedProvider{model: "gemma2"}, nil, toolModels)
	assert.Equal(t, ModeJSON, a.Mode())
}

func TestAgent_RunAppendsHistoryInOrder(t *testing.T) {
	provider := &scriptedProvider{reply: "first reply"}
	a := NewWithProvider(provider, nil, nil)

	reply, err := a.Run(context.Background(), "first question")
	require.NoError(t, err)
	assert.Equal(t, "first reply", reply.Text)

	provider.reply = "second reply"
	_, err = a.Run(context.Background(), "second question")
	require.NoError(t, err)

	history := a.History()
	require.Len(t, history, 4)
	assert.Equal(t, llms.RoleUser, history[0].Role)
	assert.Equal(t, "first question", history[0].Content)
	assert.Equal(t, llms.RoleAssistant, history[1].Role)
	assert.Equal(t, "first reply", history[1].Content)
	assert.Equal(t, "second question", history[2].Content)
	assert.Equal(t, "second reply", history[3].Content)

	// The second call must have carried the first exchange.
	require.Len(t, provider.lastMessages, 3)
	assert.Equal(t, "first question", provider.lastMessages[0].Content)
}

func TestAgent_FailedRunAppendsNothing(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	a := NewWithProvider(provider, nil, nil)

	_, err := a.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.Empty(t, a.History())
}

func TestAgent_ResetHistory(t *testing.T) {
	provider := &scriptedProvider{reply: "ok", model: "llama3.1"}
	a := NewWithProvider(provider, nil, config.DefaultToolModels)

	_, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, a.History())

	a.ResetHistory()

	assert.Empty(t, a.History())
	assert.Equal(t, ModeTools, a.Mode(), "reset must preserve identity")
	assert.Equal(t, "llama3.1", a.Model())
}

func TestAgent_ToolsModeDeclaresRegistry(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Initialize(context.Background(), func(ctx context.Context, r *tools.Registry) error {
		projects, err := tools.NewProjectsTool(t.TempDir())
		if err != nil {
			return err
		}
		return r.RegisterTool(projects)
	}))

	provider := &scriptedProvider{reply: "ok", model: "llama3.1"}
	a := NewWithProvider(provider, reg, config.DefaultToolModels)

	_, err := a.Run(context.Background(), "list projects")
	require.NoError(t, err)
	require.Len(t, provider.lastTools, 1)
	assert.Equal(t, "projects", provider.lastTools[0].Name)
}

func TestAgent_JSONModeDeclaresNoTools(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Initialize(context.Background(), nil))

	provider := &scriptedProvider{reply: "ok", model: "gemma2"}
	a := NewWithProvider(provider, reg, config.DefaultToolModels)

	_, err := a.Run(context.Background(), "list projects")
	require.NoError(t, err)
	assert.Empty(t, provider.lastTools)
}

func TestAgent_ConcurrentRunsSerialize(t *testing.T) {
	provider := &scriptedProvider{reply: "ok"}
	a := NewWithProvider(provider, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := a.Run(context.Background(), fmt.Sprintf("message %d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history := a.History()
	require.Len(t, history, 20)
	for i, msg := range history {
		if i%2 == 0 {
			assert.Equal(t, llms.RoleUser, msg.Role)
		} else {
			assert.Equal(t, llms.RoleAssistant, msg.Role)
		}
	}
}
