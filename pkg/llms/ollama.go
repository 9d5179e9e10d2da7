package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/httpclient"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// OllamaProvider talks to a local or remote Ollama server over its native
// /api/chat endpoint. Structured output uses Ollama's format field; models
// without native tool support simply ignore the tools block or error.
type OllamaProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
	baseURL    string
	est        *estimator
}

type OllamaRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   interface{}     `json:"format,omitempty"` // "json" or a schema object
	Options  *OllamaOptions  `json:"options,omitempty"`
	Tools    []OllamaTool    `json:"tools,omitempty"`
}

type OllamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []OllamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type OllamaTool struct {
	Type     string             `json:"type"`
	Function OllamaToolFunction `json:"function"`
}

type OllamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type OllamaToolCall struct {
	Type     string                 `json:"type"`
	Function OllamaToolCallFunction `json:"function"`
}

type OllamaToolCallFunction struct {
	Index     int                    `json:"index,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type OllamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type OllamaResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         OllamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

func NewOllamaProviderFromConfig(cfg *config.LLMConfig) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OllamaProvider{
		config:     cfg,
		httpClient: newHTTPClient(cfg),
		baseURL:    baseURL,
		est:        &estimator{model: cfg.Model},
	}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	return p.generate(ctx, messages, tools, nil)
}

func (p *OllamaProvider) GenerateStructured(ctx context.Context, messages []Message, tools []ToolDefinition, structConfig *StructuredOutputConfig) (string, []ToolCall, int, error) {
	return p.generate(ctx, p.withSchemaPrompt(messages, structConfig), tools, structConfig)
}

func (p *OllamaProvider) generate(ctx context.Context, messages []Message, tools []ToolDefinition, structConfig *StructuredOutputConfig) (string, []ToolCall, int, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("stentor.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String("provider", "ollama"),
			attribute.Bool("streaming", false),
			attribute.Bool("structured", structConfig != nil),
		),
	)
	defer span.End()

	request := p.buildRequest(messages, false, tools, structConfig)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		return "", nil, 0, p.recordFailure(ctx, span, duration, err)
	}
	if response.Error != "" {
		apiErr := fmt.Errorf("Ollama API error: %s", response.Error)
		return "", nil, 0, p.recordFailure(ctx, span, duration, apiErr)
	}

	text := response.Message.Content

	tokensUsed := response.PromptEvalCount + response.EvalCount
	if tokensUsed == 0 {
		tokensUsed = p.est.estimate(messages, text)
	}

	var toolCalls []ToolCall
	if len(response.Message.ToolCalls) > 0 {
		toolCalls = parseOllamaToolCalls(response.Message.ToolCalls)
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.PromptEvalCount),
		attribute.Int(observability.AttrLLMTokensOutput, response.EvalCount),
		attribute.Int("llm.tool_calls", len(toolCalls)),
	)
	span.SetStatus(codes.Ok, "success")

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.PromptEvalCount, response.EvalCount, nil)
	}

	return text, toolCalls, tokensUsed, nil
}

func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(messages, true, tools, nil)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{Type: ChunkError, Error: err}
		}
	}()

	return outputCh, nil
}

func (p *OllamaProvider) SupportsStructuredOutput() bool {
	return true
}

func (p *OllamaProvider) GetModelName() string {
	return p.config.Model
}

func (p *OllamaProvider) GetMaxTokens() int {
	return p.config.MaxTokens
}

func (p *OllamaProvider) GetTemperature() float64 {
	if p.config.Temperature == nil {
		return 0.7
	}
	return *p.config.Temperature
}

func (p *OllamaProvider) Close() error {
	return nil
}

func (p *OllamaProvider) recordFailure(ctx context.Context, span trace.Span, duration time.Duration, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
	}

	return err
}

// withSchemaPrompt prepends a system message spelling the schema out.
// Ollama's format field constrains decoding, but smaller models produce
// better-shaped output when the schema is also in the prompt.
func (p *OllamaProvider) withSchemaPrompt(messages []Message, structConfig *StructuredOutputConfig) []Message {
	if structConfig == nil || structConfig.Schema == nil {
		return messages
	}

	schemaJSON, err := json.MarshalIndent(structConfig.Schema, "", "  ")
	if err != nil {
		return messages
	}

	prompt := fmt.Sprintf(`You must respond with valid JSON matching this exact schema:

%s

Important:
- Output ONLY valid JSON, no other text
- All required fields must be present
- Follow the exact structure specified
- Use correct data types for each field`, string(schemaJSON))

	return append([]Message{SystemMessage(prompt)}, messages...)
}

func (p *OllamaProvider) buildRequest(messages []Message, stream bool, tools []ToolDefinition, structConfig *StructuredOutputConfig) OllamaRequest {
	ollamaMessages := make([]OllamaMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == RoleTool {
			content := msg.Content
			toolName := msg.ToolName
			if toolName == "" {
				toolName = msg.ToolCallID
			}
			ollamaMessages = append(ollamaMessages, OllamaMessage{
				Role:     RoleTool,
				Content:  content,
				ToolName: toolName,
			})
			continue
		}

		ollamaMsg := OllamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		if len(msg.ToolCalls) > 0 {
			ollamaMsg.ToolCalls = make([]OllamaToolCall, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				args := tc.Args
				if args == nil {
					args = make(map[string]interface{})
				}
				ollamaMsg.ToolCalls[i] = OllamaToolCall{
					Type: "function",
					Function: OllamaToolCallFunction{
						Index:     i,
						Name:      tc.Name,
						Arguments: args,
					},
				}
			}
		}

		ollamaMessages = append(ollamaMessages, ollamaMsg)
	}

	request := OllamaRequest{
		Model:    p.config.Model,
		Messages: ollamaMessages,
		Stream:   stream,
	}

	opts := &OllamaOptions{}
	if t := p.GetTemperature(); t > 0 {
		opts.Temperature = t
	}
	if p.config.MaxTokens > 0 {
		opts.NumPredict = p.config.MaxTokens
	}
	if opts.Temperature > 0 || opts.NumPredict > 0 {
		request.Options = opts
	}

	if structConfig != nil && structConfig.Format == "json" {
		if structConfig.Schema != nil {
			request.Format = structConfig.Schema
		} else {
			request.Format = "json"
		}
	}

	if len(tools) > 0 {
		request.Tools = convertToOllamaTools(tools)
	}

	return request
}

func convertToOllamaTools(tools []ToolDefinition) []OllamaTool {
	result := make([]OllamaTool, len(tools))
	for i, tool := range tools {
		result[i] = OllamaTool{
			Type:     "function",
			Function: OllamaToolFunction(tool),
		}
	}
	return result
}

func parseOllamaToolCalls(ollamaToolCalls []OllamaToolCall) []ToolCall {
	toolCalls := make([]ToolCall, 0, len(ollamaToolCalls))
	for i, tc := range ollamaToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = make(map[string]interface{})
		}

		// Ollama does not assign call ids; synthesize stable ones from the
		// call index so tool results can refer back.
		var toolCallID string
		if tc.Function.Index >= 0 {
			toolCallID = fmt.Sprintf("call_%d_%s", tc.Function.Index, tc.Function.Name)
		} else {
			toolCallID = fmt.Sprintf("call_%d_%d", time.Now().UnixNano(), i)
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:   toolCallID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return toolCalls
}

func (p *OllamaProvider) newRequest(ctx context.Context, request OllamaRequest) (*http.Request, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func checkOllamaResponse(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		errorBody := string(bodyBytes)
		if readErr != nil {
			errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
		}
		var errorJSON struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(bodyBytes, &errorJSON) == nil && errorJSON.Error != "" {
			return fmt.Errorf("Ollama API error: %s", errorJSON.Error)
		}
		return fmt.Errorf("Ollama API request failed with status %d: %s", resp.StatusCode, errorBody)
	}

	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("failed to make request: no response received")
	}
	return nil
}

func (p *OllamaProvider) makeRequest(ctx context.Context, request OllamaRequest) (*OllamaResponse, error) {
	req, err := p.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if checkErr := checkOllamaResponse(resp, err); checkErr != nil {
		return nil, checkErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response OllamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

func (p *OllamaProvider) makeStreamingRequest(ctx context.Context, request OllamaRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if checkErr := checkOllamaResponse(resp, err); checkErr != nil {
		return checkErr
	}

	// Ollama streams newline-delimited JSON objects, not SSE.
	reader := bufio.NewReader(resp.Body)
	toolCallsMap := make(map[int]*OllamaToolCall)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var chunk OllamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}

		if chunk.Error != "" {
			return fmt.Errorf("Ollama API error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			outputCh <- StreamChunk{Type: ChunkText, Text: chunk.Message.Content}
		}

		for _, tc := range chunk.Message.ToolCalls {
			idx := tc.Function.Index
			if idx < 0 {
				idx = len(toolCallsMap)
			}
			if existing, exists := toolCallsMap[idx]; exists {
				for k, v := range tc.Function.Arguments {
					existing.Function.Arguments[k] = v
				}
			} else {
				call := tc
				toolCallsMap[idx] = &call
			}
		}

		if chunk.Done {
			if len(toolCallsMap) > 0 {
				var accumulated []OllamaToolCall
				for i := 0; i < len(toolCallsMap); i++ {
					if tc, exists := toolCallsMap[i]; exists {
						accumulated = append(accumulated, *tc)
					}
				}
				for _, tc := range parseOllamaToolCalls(accumulated) {
					call := tc
					outputCh <- StreamChunk{Type: ChunkToolCall, ToolCall: &call}
				}
			}

			outputCh <- StreamChunk{
				Type:   ChunkDone,
				Tokens: chunk.PromptEvalCount + chunk.EvalCount,
			}
			return nil
		}
	}

	outputCh <- StreamChunk{Type: ChunkDone}
	return nil
}
