// Package notification creates user-facing notification records for workflow
// events and hands their delivery to the task orchestrator. The dispatcher is
// the only writer of notifications; everything downstream of it (delivery,
// listing, read tracking) treats them as created-once records.
package notification
