package llms

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens for a specific model. Some OpenAI-compatible
// backends omit usage figures from their responses; the providers fall back
// to a counter so the recorded metrics stay meaningful.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.Mutex
)

// NewTokenCounter builds a counter for the model, falling back to the
// cl100k_base encoding when the model is unknown to tiktoken.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCache[model] = encoding
	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts tokens in a message list including the per-message
// framing overhead, per OpenAI's published counting scheme.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	const tokensPerMessage = 3

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += len(tc.encoding.Encode(msg.Role, nil, nil))
		total += len(tc.encoding.Encode(msg.Content, nil, nil))
	}

	// Every reply is primed with <|start|>assistant<|message|>.
	total += 3

	return total
}

// GetModel returns the model this counter was built for.
func (tc *TokenCounter) GetModel() string {
	return tc.model
}

// EstimateTokens gives a rough count for when no encoding is available.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// estimator lazily builds a TokenCounter per provider. Construction can
// touch the tiktoken vocabulary cache, so it is deferred until a response
// actually arrives without usage figures.
type estimator struct {
	model string
	once  sync.Once
	tc    *TokenCounter
}

func (e *estimator) estimate(messages []Message, reply string) int {
	e.once.Do(func() {
		tc, err := NewTokenCounter(e.model)
		if err != nil {
			slog.Debug("Token encoding unavailable, using rough estimates",
				"model", e.model,
				"error", err)
			return
		}
		e.tc = tc
	})

	if e.tc == nil {
		total := EstimateTokens(reply)
		for _, msg := range messages {
			total += EstimateTokens(msg.Content)
		}
		return total
	}

	return e.tc.CountMessages(messages) + e.tc.Count(reply)
}
