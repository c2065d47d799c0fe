// Package conversation tracks the message history shared between the
// engine and an agent backend, with size estimation and pruning.
//
// The history always starts with exactly one system message, and pruning
// never evicts it. Sizes are estimated with the chars/4 heuristic, which
// is deliberately rough; pruning thresholds account for that.
package conversation
