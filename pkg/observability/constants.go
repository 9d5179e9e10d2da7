package observability

const (
	AttrSessionID       = "session.id"
	AttrIntentAction    = "intent.action"
	AttrIntentStrategy  = "intent.strategy"
	AttrIntentNamespace = "intent.namespace"
	AttrValidationCheck = "validation.check"
	AttrIntegrationMode = "tool.integration_mode"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMMode         = "llm.mode"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrHTTPMethod      = "http.method"
	AttrHTTPPath        = "http.path"
	AttrHTTPStatusCode  = "http.status_code"

	SpanChatRequest    = "router.chat_request"
	SpanAgentRun       = "agent.run"
	SpanLLMRequest     = "llm.request"
	SpanIntentAnalysis = "intent.analyze"
	SpanToolExecution  = "tool.execution"
	SpanHTTPRequest    = "http.request"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	DefaultServiceName = "stentor"
)
