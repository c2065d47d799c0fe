// Package project detects read-only facts about the working directory:
// language and framework markers, git state, and project instruction
// documents. The engine consumes these when building prompts and for the
// commit-count progress metric.
package project
