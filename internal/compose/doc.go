// Package compose drives the host container engine for branch
// workspaces.
//
// The imperative verbs (build, up, down, restart, logs, exec) shell out
// to the docker compose CLI against the workspace's rendered spec; the
// query side (per-service status) goes through the Docker Engine SDK,
// discovering a branch's containers by their compose project label.
// Every invocation is bounded by a configured timeout.
package compose
