package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/stentor/pkg/agent"
	"github.com/kadirpekel/stentor/pkg/llms"
)

type echoProvider struct{}

func (echoProvider) Generate(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (string, []llms.ToolCall, int, error) {
	return "echo: " + messages[len(messages)-1].Content, nil, 1, nil
}

func (echoProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk)
	close(ch)
	return ch, nil
}

func (echoProvider) GetModelName() string    { return "echo" }
func (echoProvider) GetMaxTokens() int       { return 100 }
func (echoProvider) GetTemperature() float64 { return 0 }
func (echoProvider) Close() error            { return nil }

func newTestManager() *Manager {
	return NewManager(func() (*agent.Agent, error) {
		return agent.NewWithProvider(echoProvider{}, nil, nil), nil
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	m := newTestManager()

	first, err := m.GetOrCreate("alpha")
	require.NoError(t, err)
	require.NotNil(t, first.Agent)
	assert.Equal(t, "alpha", first.ID)
	assert.Equal(t, 1, m.Count())

	again, err := m.GetOrCreate("alpha")
	require.NoError(t, err)
	assert.Same(t, first, again, "same id must return the same session")
	assert.Equal(t, 1, m.Count())
}

func TestManager_FactoryErrorPropagates(t *testing.T) {
	m := NewManager(func() (*agent.Agent, error) {
		return nil, errors.New("provider unavailable")
	})

	_, err := m.GetOrCreate("alpha")
	require.Error(t, err)
	assert.Equal(t, 0, m.Count())
}

func TestManager_DeleteResetsHistory(t *testing.T) {
	m := newTestManager()

	sess, err := m.GetOrCreate("alpha")
	require.NoError(t, err)
	_, err = sess.Agent.Run(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Agent.History())

	assert.True(t, m.Delete("alpha"))
	assert.Empty(t, sess.Agent.History())
	assert.Equal(t, 0, m.Count())

	assert.False(t, m.Delete("alpha"), "second delete reports absence")
}

func TestManager_SessionIsolation(t *testing.T) {
	m := newTestManager()

	a, err := m.GetOrCreate("a")
	require.NoError(t, err)
	b, err := m.GetOrCreate("b")
	require.NoError(t, err)

	_, err = a.Agent.Run(context.Background(), "for a")
	require.NoError(t, err)
	_, err = b.Agent.Run(context.Background(), "for b")
	require.NoError(t, err)

	require.True(t, m.Delete("a"))

	history := b.Agent.History()
	require.Len(t, history, 2)
	assert.Equal(t, "for b", history[0].Content)
}

func TestManager_IDsSorted(t *testing.T) {
	m := newTestManager()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := m.GetOrCreate(id)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, m.IDs())
	assert.Equal(t, 3, m.Count())
}

func TestManager_ConcurrentCreateSameID(t *testing.T) {
	m := newTestManager()

	const workers = 16
	sessions := make([]*Session, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess, err := m.GetOrCreate("shared")
			require.NoError(t, err)
			sessions[n] = sess
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, m.Count())
	for _, sess := range sessions[1:] {
		assert.Same(t, sessions[0], sess)
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := newTestManager()

	stale, err := m.GetOrCreate("stale")
	require.NoError(t, err)
	fresh, err := m.GetOrCreate("fresh")
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastUsed = time.Now().Add(-time.Hour)
	stale.mu.Unlock()
	fresh.Touch()

	m.evictIdle(30 * time.Minute)

	assert.Equal(t, []string{"fresh"}, m.IDs())
}
