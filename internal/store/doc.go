// Package store defines the persistence interfaces the orchestration layer
// depends on, along with the sentinel errors implementations must return.
// Concrete implementations live under internal/platform.
package store
