// Package plan owns the task queue: task creation from a user prompt,
// FIFO scheduling, status transitions, and best-effort persistence.
//
// Tasks are never deleted, including failed ones, so the queue remains
// inspectable after a run. The in-memory queue is authoritative;
// persistence failures are reported through a warn hook and swallowed.
package plan
