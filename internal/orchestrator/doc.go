// Package orchestrator implements the asynchronous task-orchestration core:
// queue registry, pattern-based task routing, retry/dead-letter policy,
// periodic scheduling, and per-queue executor pools running on top of the
// broker abstraction.
//
// The pieces are wired together explicitly at startup; there is no global
// application object. Handlers are registered in an explicit registry table
// validated against the configured routes, and the retry/dead-letter decision
// is an inspectable tagged value rather than control flow.
package orchestrator
