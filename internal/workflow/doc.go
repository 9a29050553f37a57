// Package workflow implements the authorization-request workflow: the service
// that applies state transitions with optimistic concurrency, and the task
// handlers that drive transitions from the orchestration layer. All status
// changes, synchronous or task-driven, flow through Service.Transition.
package workflow
