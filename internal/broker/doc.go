// Package broker abstracts the message broker the task-orchestration layer
// runs on. The contract is deliberately narrow: at-least-once delivery,
// per-message acknowledge/reject, and a visibility timeout after which an
// unacknowledged delivery is redelivered.
//
// Two implementations are provided: an in-memory broker for tests and local
// development, and a RabbitMQ adapter for production.
package broker
