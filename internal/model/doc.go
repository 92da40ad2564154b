// Package model defines the domain types for the hovel control plane.
//
// The central entity is Branch: an isolated per-branch development
// workspace with its own host port, container group, and version-control
// branch. Branch records are persisted as JSON sidecar files by the
// registry package; the structs here carry the JSON tags that define
// both the sidecar schema and the HTTP API representation.
package model
