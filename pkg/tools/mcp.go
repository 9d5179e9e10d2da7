package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/httpclient"
)

const (
	mcpClientName      = "stentor"
	mcpClientVersion   = "1.0.0"
	mcpProtocolVersion = "2024-11-05"
	mcpRequestTimeout  = 30 * time.Second
)

// MCPSource connects to one MCP server and adapts its tools to the
// registry's Tool contract. Registered names are prefixed with the server
// name ("<server>.<tool>") so sources cannot collide.
//
// Transport support follows the server configuration: stdio runs the
// server as a subprocess through the mcp-go client; sse and
// streamable-http speak JSON-RPC over the retrying HTTP client.
type MCPSource struct {
	cfg config.MCPServerConfig

	mu        sync.Mutex
	stdio     *client.Client
	http      *httpclient.Client
	sessionID string
}

func NewMCPSource(cfg config.MCPServerConfig) *MCPSource {
	return &MCPSource{cfg: cfg}
}

// RegisterInto discovers the server's tools and registers each of them.
func (s *MCPSource) RegisterInto(ctx context.Context, r *Registry) error {
	tools, err := s.discover(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover tools from MCP server %q: %w", s.cfg.Name, err)
	}

	for _, t := range tools {
		if err := r.RegisterTool(t); err != nil {
			return err
		}
	}

	slog.Info("Registered MCP tools",
		"source", s.cfg.Name,
		"transport", s.cfg.Transport,
		"tools", len(tools),
	)
	return nil
}

// Close shuts down the stdio subprocess if one is running.
func (s *MCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdio != nil {
		err := s.stdio.Close()
		s.stdio = nil
		return err
	}
	return nil
}

func (s *MCPSource) discover(ctx context.Context) ([]Tool, error) {
	if s.cfg.Transport == "stdio" {
		return s.discoverStdio(ctx)
	}
	return s.discoverHTTP(ctx)
}

// discoverStdio launches the server subprocess and lists its tools.
func (s *MCPSource) discoverStdio(ctx context.Context) ([]Tool, error) {
	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, envSlice(s.cfg.Env), s.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    mcpClientName,
		Version: mcpClientVersion,
	}
	initReq.Params.ProtocolVersion = mcpProtocolVersion

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]Tool, 0, len(listResp.Tools))
	for _, remote := range listResp.Tools {
		tools = append(tools, &mcpTool{
			source:      s,
			name:        s.cfg.Name + "." + remote.Name,
			remoteName:  remote.Name,
			description: remote.Description,
			inputSchema: convertMCPSchema(remote.InputSchema),
		})
	}

	s.mu.Lock()
	s.stdio = mcpClient
	s.mu.Unlock()

	return tools, nil
}

// discoverHTTP initializes a JSON-RPC session over HTTP and lists tools.
func (s *MCPSource) discoverHTTP(ctx context.Context) ([]Tool, error) {
	s.mu.Lock()
	if s.http == nil {
		s.http = httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: mcpRequestTimeout}),
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(2*time.Second),
		)
	}
	s.mu.Unlock()

	initResp, err := s.makeRequest(ctx, "initialize", map[string]interface{}{
		"protocolVersion": mcpProtocolVersion,
		"clientInfo": map[string]interface{}{
			"name":    mcpClientName,
			"version": mcpClientVersion,
		},
		"capabilities": map[string]interface{}{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}
	if initResp.Error != nil {
		return nil, fmt.Errorf("MCP initialize error: %s", initResp.Error.Message)
	}

	listResp, err := s.makeRequest(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	if listResp.Error != nil {
		return nil, fmt.Errorf("MCP tools/list error: %s", listResp.Error.Message)
	}

	resultMap, ok := listResp.Result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type from tools/list")
	}
	toolsList, ok := resultMap["tools"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("missing tools in tools/list response")
	}

	var tools []Tool
	for _, raw := range toolsList {
		toolMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		name, _ := toolMap["name"].(string)
		if name == "" {
			continue
		}
		desc, _ := toolMap["description"].(string)
		inputSchema, _ := toolMap["inputSchema"].(map[string]interface{})

		tools = append(tools, &mcpTool{
			source:      s,
			name:        s.cfg.Name + "." + name,
			remoteName:  name,
			description: desc,
			inputSchema: inputSchema,
		})
	}

	return tools, nil
}

// JSON-RPC wire types for the HTTP transports.
type mcpRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type mcpResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *mcpError   `json:"error,omitempty"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// makeRequest sends one JSON-RPC request over HTTP. Streamable-http
// servers hand back a session id header that must be echoed on every
// subsequent request.
func (s *MCPSource) makeRequest(ctx context.Context, method string, params interface{}) (*mcpResponse, error) {
	body, err := json.Marshal(mcpRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	s.mu.Lock()
	sessionID := s.sessionID
	httpClient := s.http
	s.mu.Unlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if newSessionID := resp.Header.Get("mcp-session-id"); newSessionID != "" {
		s.mu.Lock()
		s.sessionID = newSessionID
		s.mu.Unlock()
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(resp.Body)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp mcpResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &rpcResp, nil
}

// readSSEResponse reads the first complete JSON-RPC message from an SSE
// body. The HTTP client's timeout bounds the read.
func readSSEResponse(body io.Reader) (*mcpResponse, error) {
	reader := bufio.NewReader(body)
	var data strings.Builder

	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimSpace(line)

		if trimmed == "" && data.Len() > 0 {
			var rpcResp mcpResponse
			if parseErr := json.Unmarshal([]byte(data.String()), &rpcResp); parseErr == nil {
				return &rpcResp, nil
			}
			data.Reset()
		} else if strings.HasPrefix(trimmed, "data:") {
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
		}

		if err != nil {
			break
		}
	}

	if data.Len() > 0 {
		var rpcResp mcpResponse
		if parseErr := json.Unmarshal([]byte(data.String()), &rpcResp); parseErr == nil {
			return &rpcResp, nil
		}
	}
	return nil, fmt.Errorf("SSE stream ended without a complete message")
}

// mcpTool adapts one remote MCP tool to the Tool contract.
type mcpTool struct {
	source      *MCPSource
	name        string
	remoteName  string
	description string
	inputSchema map[string]interface{}
}

func (t *mcpTool) GetName() string {
	return t.name
}

func (t *mcpTool) GetDescription() string {
	return t.description
}

func (t *mcpTool) GetSchema() ToolSchema {
	return ToolSchema{
		Input: t.inputSchema,
		Metadata: map[string]interface{}{
			"source":    t.source.cfg.Name,
			"transport": t.source.cfg.Transport,
			"remote":    t.remoteName,
		},
	}
}

// Run invokes the remote tool. Transport failures are reported in-band.
func (t *mcpTool) Run(ctx context.Context, input ToolInput) ToolOutput {
	args := make(map[string]interface{}, len(input.Args)+3)
	for k, v := range input.Args {
		args[k] = v
	}
	if input.Action != "" {
		args["action"] = input.Action
	}
	if input.Namespace != "" {
		args["namespace"] = input.Namespace
	}
	if input.ProjectID != "" {
		args["project_id"] = input.ProjectID
	}

	if t.source.cfg.Transport == "stdio" {
		return t.callStdio(ctx, args)
	}
	return t.callHTTP(ctx, args)
}

func (t *mcpTool) callStdio(ctx context.Context, args map[string]interface{}) ToolOutput {
	t.source.mu.Lock()
	mcpClient := t.source.stdio
	t.source.mu.Unlock()

	if mcpClient == nil {
		return ToolOutput{Success: false, Message: "MCP client not connected"}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.remoteName
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return ToolOutput{Success: false, Message: fmt.Sprintf("MCP call failed: %v", err)}
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))

	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return ToolOutput{Success: false, Message: text}
	}

	return ToolOutput{
		Success: true,
		Message: text,
		Payload: map[string]interface{}{"content": texts},
	}
}

func (t *mcpTool) callHTTP(ctx context.Context, args map[string]interface{}) ToolOutput {
	resp, err := t.source.makeRequest(ctx, "tools/call", map[string]interface{}{
		"name":      t.remoteName,
		"arguments": args,
	})
	if err != nil {
		return ToolOutput{Success: false, Message: fmt.Sprintf("MCP call failed: %v", err)}
	}
	if resp.Error != nil {
		return ToolOutput{Success: false, Message: resp.Error.Message}
	}

	resultMap, ok := resp.Result.(map[string]interface{})
	if !ok {
		return ToolOutput{Success: true, Message: fmt.Sprintf("%v", resp.Result)}
	}

	var texts []string
	if contentList, ok := resultMap["content"].([]interface{}); ok {
		for _, item := range contentList {
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := itemMap["text"].(string); ok {
				texts = append(texts, text)
			}
		}
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))

	if isError, _ := resultMap["isError"].(bool); isError {
		if text == "" {
			text = "unknown error"
		}
		return ToolOutput{Success: false, Message: text}
	}

	return ToolOutput{
		Success: true,
		Message: text,
		Payload: map[string]interface{}{"content": texts},
	}
}

// HealthCheck verifies the server still answers a tools/list request.
func (t *mcpTool) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if t.source.cfg.Transport == "stdio" {
		t.source.mu.Lock()
		mcpClient := t.source.stdio
		t.source.mu.Unlock()
		if mcpClient == nil {
			return false
		}
		_, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
		return err == nil
	}

	resp, err := t.source.makeRequest(ctx, "tools/list", nil)
	return err == nil && resp.Error == nil
}

// convertMCPSchema flattens an mcp-go input schema into a plain map.
func convertMCPSchema(schema mcp.ToolInputSchema) map[string]interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

var _ Tool = (*mcpTool)(nil)
