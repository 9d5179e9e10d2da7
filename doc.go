// Package stentor is an inference router that fronts an OpenAI-compatible
// chat completion endpoint with intent analysis and tool dispatch.
//
// Stentor sits between chat clients and a language model. For each request
// it resolves a session-scoped agent, asks the model for a reply, and then
// validates that reply against the original message: replies that leaked
// template placeholders, claimed inability, hallucinated enumerations, or
// answered count queries with invented numbers are redone by executing the
// matching tool in-process. Intent — which action, against which namespace,
// for which project — is extracted by an LLM-backed structured-output
// analyzer with a deterministic rule fallback, so the pipeline degrades
// rather than fails when the model is unavailable.
//
// # Quick Start
//
// Install the router:
//
//	go install github.com/kadirpekel/stentor/cmd/stentor@latest
//
// Run it against a local Ollama:
//
//	stentor serve
//
// Or with an explicit configuration file:
//
//	stentor serve --config stentor.yaml
//
// Then talk to it like any OpenAI-compatible endpoint:
//
//	curl http://localhost:8080/v1/chat/completions \
//	  -d '{"messages":[{"role":"user","content":"create a project called demo in dev namespace"}]}'
//
// # Packages
//
//   - pkg/transport — HTTP surface: chat completions, SSE streaming, admin
//   - pkg/agent — session-scoped agent over an LLM provider
//   - pkg/session — session manager with optional idle eviction
//   - pkg/intent — intent analysis strategies (llm, rules, hybrid)
//   - pkg/validation — reply validation (manual execution gate)
//   - pkg/tools — tool contract, registry, executor, built-in projects tool
//   - pkg/llms — OpenAI-compatible, Ollama, and Gemini providers
//   - pkg/config — declarative YAML configuration with koanf loaders
package stentor
