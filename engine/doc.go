// Package engine is the orchestrator: it pulls the next task from the
// planner, builds context, invokes the agent, interprets the result,
// updates state and metrics, and decides whether to keep iterating.
//
// Control is single-threaded and cooperative. Pause and Stop set flags
// checked only at the top of each iteration; an in-flight model or tool
// call is never preempted. Every run terminates with a classified stop
// reason reported through the event stream, never silently.
package engine
