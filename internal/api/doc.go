// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts HTTP concerns to the workflow service
// and the task orchestration layer, keeping internal error details out of
// client responses.
package api
