// Package postgres provides PostgreSQL implementations of the persistence
// interfaces in internal/store, plus the orchestrator's dead-letter store.
// All stores accept a store.DBTX so they run equally over a connection pool
// or an open transaction, and map database errors to the sentinel errors the
// service layer matches on.
package postgres
