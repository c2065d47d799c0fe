// Package permission gates tool execution. Every tool call passes
// through a Gate that classifies it as destructive, high-risk, or
// normal, consults per-tool rules and the approval cache, and either
// decides on its own or suspends into an interactive prompt.
//
// Destructive and high-risk calls always prompt, even when the session
// runs with auto-approve. Without a prompter the gate fails closed.
package permission
