// Package server implements the HTTP control API: a thin gin layer
// that decodes requests, dispatches to the branch engine, and maps
// domain error kinds to HTTP statuses. No orchestration logic lives
// here.
package server
