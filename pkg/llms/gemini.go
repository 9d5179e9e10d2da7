package llms

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// GeminiProvider talks to Google Gemini through the official genai SDK.
type GeminiProvider struct {
	config *config.LLMConfig
	client *genai.Client
	est    *estimator
}

func NewGeminiProviderFromConfig(cfg *config.LLMConfig) (*GeminiProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		config: cfg,
		client: client,
		est:    &estimator{model: cfg.Model},
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	return p.generate(ctx, messages, tools, nil)
}

func (p *GeminiProvider) GenerateStructured(ctx context.Context, messages []Message, tools []ToolDefinition, structConfig *StructuredOutputConfig) (string, []ToolCall, int, error) {
	return p.generate(ctx, messages, tools, structConfig)
}

func (p *GeminiProvider) generate(ctx context.Context, messages []Message, tools []ToolDefinition, structConfig *StructuredOutputConfig) (string, []ToolCall, int, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("stentor.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String("provider", "gemini"),
			attribute.Bool("streaming", false),
			attribute.Bool("structured", structConfig != nil),
		),
	)
	defer span.End()

	contents, systemInstruction := buildGeminiContents(messages)
	genConfig := p.buildConfig(systemInstruction, tools, structConfig)

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, genConfig)
	duration := time.Since(startTime)

	if err != nil {
		return "", nil, 0, p.recordFailure(ctx, span, duration, fmt.Errorf("Gemini generation failed: %w", err))
	}

	text, toolCalls, err := parseGeminiResponse(resp)
	if err != nil {
		return "", nil, 0, p.recordFailure(ctx, span, duration, err)
	}

	promptTokens := 0
	completionTokens := 0
	tokensUsed := 0
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		tokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	if tokensUsed == 0 {
		tokensUsed = p.est.estimate(messages, text)
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, promptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, completionTokens),
		attribute.Int("llm.tool_calls", len(toolCalls)),
	)
	span.SetStatus(codes.Ok, "success")

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, promptTokens, completionTokens, nil)
	}

	return text, toolCalls, tokensUsed, nil
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	contents, systemInstruction := buildGeminiContents(messages)
	genConfig := p.buildConfig(systemInstruction, tools, nil)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		totalTokens := 0
		emitted := make(map[string]bool)

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.config.Model, contents, genConfig) {
			if err != nil {
				outputCh <- StreamChunk{Type: ChunkError, Error: fmt.Errorf("Gemini streaming error: %w", err)}
				return
			}

			if resp.UsageMetadata != nil {
				totalTokens = int(resp.UsageMetadata.TotalTokenCount)
			}

			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}

			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" && !part.Thought {
					outputCh <- StreamChunk{Type: ChunkText, Text: part.Text}
				}

				if part.FunctionCall != nil {
					id := part.FunctionCall.ID
					if id == "" {
						id = stableFunctionCallID(part.FunctionCall.Name, part.FunctionCall.Args)
					}
					// Gemini can repeat a function call part across
					// chunks; emit each call once.
					if emitted[id] {
						continue
					}
					emitted[id] = true

					outputCh <- StreamChunk{
						Type: ChunkToolCall,
						ToolCall: &ToolCall{
							ID:   id,
							Name: part.FunctionCall.Name,
							Args: part.FunctionCall.Args,
						},
					}
				}
			}
		}

		outputCh <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}
	}()

	return outputCh, nil
}

func (p *GeminiProvider) SupportsStructuredOutput() bool {
	return true
}

func (p *GeminiProvider) GetModelName() string {
	return p.config.Model
}

func (p *GeminiProvider) GetMaxTokens() int {
	return p.config.MaxTokens
}

func (p *GeminiProvider) GetTemperature() float64 {
	if p.config.Temperature == nil {
		return 0.7
	}
	return *p.config.Temperature
}

func (p *GeminiProvider) Close() error {
	return nil
}

func (p *GeminiProvider) recordFailure(ctx context.Context, span trace.Span, duration time.Duration, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
	}

	return err
}

// buildGeminiContents converts conversation messages to genai contents.
// System turns become a single system instruction; tool turns become
// function responses on the user side of the exchange.
func buildGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemTexts []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if msg.Content != "" {
				systemTexts = append(systemTexts, msg.Content)
			}

		case RoleTool:
			name := msg.ToolName
			if name == "" {
				name = msg.ToolCallID
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       msg.ToolCallID,
						Name:     name,
						Response: map[string]any{"result": msg.Content},
					},
				}},
			})

		default:
			role := "user"
			if msg.Role == RoleAssistant {
				role = "model"
			}

			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args,
					},
				})
			}

			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: role, Parts: parts})
			}
		}
	}

	var systemInstruction *genai.Content
	if len(systemTexts) > 0 {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemTexts, "\n\n")}},
			Role:  "user",
		}
	}

	return contents, systemInstruction
}

func (p *GeminiProvider) buildConfig(systemInstruction *genai.Content, tools []ToolDefinition, structConfig *StructuredOutputConfig) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}

	if t := p.GetTemperature(); t > 0 {
		genConfig.Temperature = genai.Ptr(float32(t))
	}
	if p.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(p.config.MaxTokens)
	}

	if structConfig != nil && structConfig.Format == "json" {
		genConfig.ResponseMIMEType = "application/json"
		if schema, ok := structConfig.Schema.(map[string]interface{}); ok {
			genConfig.ResponseSchema = toGenaiSchema(schema)
		}
	}

	if len(tools) > 0 {
		var genaiTools []*genai.Tool
		for _, tool := range tools {
			genaiTools = append(genaiTools, &genai.Tool{
				FunctionDeclarations: []*genai.FunctionDeclaration{{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  toGenaiSchema(tool.Parameters),
				}},
			})
		}
		genConfig.Tools = genaiTools
	}

	return genConfig
}

// toGenaiSchema converts a JSON schema map to the SDK's schema type.
func toGenaiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (string, []ToolCall, error) {
	if len(resp.Candidates) == 0 {
		return "", nil, fmt.Errorf("empty response from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", nil, nil
	}

	var textParts []string
	var toolCalls []ToolCall

	for _, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			textParts = append(textParts, part.Text)
		}

		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", len(toolCalls))
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   id,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}

	return strings.Join(textParts, ""), toolCalls, nil
}

// stableFunctionCallID derives a deterministic id from the call's name and
// arguments, so a call repeated across streaming chunks maps to one id.
func stableFunctionCallID(name string, args map[string]any) string {
	data := map[string]any{"name": name, "args": args}
	jsonBytes, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonBytes)
	return fmt.Sprintf("call_%x", hash[:8])
}
