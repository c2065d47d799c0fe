// Package llm provides a provider-agnostic client for language model
// completions, used by the native tool-calling agent backend.
//
// The package deliberately exposes only the shape the execution engine
// depends on: ordered messages and a tool schema go in, text, tool calls,
// and token usage come out, either as one response or as a stream of
// events. Provider specifics live behind the ProviderAdapter interface;
// the bundled GollmAdapter wraps gollm for OpenAI- and Anthropic-family
// models.
//
// Errors are classified into a typed hierarchy so callers can decide
// whether a failure is worth retrying; the Retry helper applies an
// exponential backoff policy to retryable errors only.
package llm
