// Package agent wraps a model-calling backend behind one capability the
// engine is written against: execute a prompt, stream events, register
// tools, own a conversation.
//
// Two backends exist. NativeAgent drives the llm client with structured
// tool definitions and receives typed tool calls. SubprocessAgent shells
// out to a CLI model binary that only speaks text; tool calls arrive
// embedded as "TOOL_CALL: {json}" fragments that the adapter extracts,
// and tool results are fed back as conversational text. The engine never
// branches on which backend it holds.
package agent
