// Package tools provides the tool registry, the core filesystem and shell
// tools, and the local execution environment they run against.
//
// Tools are registered by name with a JSON Schema parameter definition and
// a handler. Registry.Execute validates parameters against the schema,
// recovers handler panics, and always returns a Result; execution failures
// are reported in the Result rather than as Go errors so a misbehaving
// tool cannot take down the engine loop.
package tools
