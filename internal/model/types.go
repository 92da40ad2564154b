package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TTYDPortOffset is the fixed offset between a branch's application port
// and its web-terminal port. The terminal port is never allocated
// independently: ttydPort = port + TTYDPortOffset, so uniqueness of the
// application port implies uniqueness of the terminal port.
const TTYDPortOffset = 1000

// DefaultService is the service included in a branch's container group
// when the create request names no services.
const DefaultService = "app"

// Status represents the lifecycle state of a branch environment.
// The state transitions are:
//
//	created → building → running        (auto-start success path)
//	building → failed                   (build or start error)
//	running ⇄ stopped                   (stop / start)
//	any → deleting → gone               (delete)
type Status string

const (
	// StatusCreated indicates the workspace is rendered and registered
	// but no containers have been built or started.
	StatusCreated Status = "created"

	// StatusBuilding indicates a background build-and-start job is in
	// flight for this branch.
	StatusBuilding Status = "building"

	// StatusRunning indicates the container group is up.
	StatusRunning Status = "running"

	// StatusStopped indicates the container group was brought down but
	// the workspace and registration are intact.
	StatusStopped Status = "stopped"

	// StatusFailed indicates the most recent build or start attempt
	// failed. The workspace is retained so logs can be inspected.
	StatusFailed Status = "failed"

	// StatusDeleting indicates deletion is in progress. A branch in this
	// state disappears from the registry once teardown completes.
	StatusDeleting Status = "deleting"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the Status value is one of the predefined states.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusBuilding, StatusRunning, StatusStopped, StatusFailed, StatusDeleting:
		return true
	default:
		return false
	}
}

// ParseStatus converts a string to a Status. Returns an error if the
// string does not match any valid state.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid branch status: %q (valid: created, building, running, stopped, failed, deleting)", s)
	}
	return status, nil
}

// TerminalSession records an interactive web-terminal process started
// inside a branch's primary container. Sessions are one-shot: the ttyd
// process exits on client disconnect, and no liveness tracking is kept.
// A stale record is simply overwritten by the next session start.
type TerminalSession struct {
	// Port is the host port the terminal listens on. Always equal to
	// the branch port plus TTYDPortOffset.
	Port int `json:"port"`

	// URL is the browser-reachable address of the terminal.
	URL string `json:"url"`

	// StartedAt is when the session process was launched.
	StartedAt time.Time `json:"started_at"`

	// Command is the full command line executed inside the container.
	Command string `json:"command"`
}

// Branch is the unit of isolation: a named development workspace with
// its own host port, rendered container-group spec, and version-control
// branch. The struct doubles as the sidecar-file schema (the registry
// marshals it verbatim) and the API representation.
type Branch struct {
	// Name uniquely identifies the branch. It is used as a filesystem
	// path segment, a VCS branch name, and (prefixed) a container-group
	// project name, so the allowed character set is restrictive.
	Name string `json:"branch_name"`

	// Port is the host port assigned to this branch, unique across all
	// live branches.
	Port int `json:"port"`

	// TTYDPort is Port + TTYDPortOffset. Present only while a terminal
	// session exists.
	TTYDPort int `json:"ttyd_port,omitempty"`

	// WorkspacePath is the absolute path to the branch's workspace
	// directory.
	WorkspacePath string `json:"workspace_path"`

	// Services lists the container-group services included in this
	// branch, in request order. Never empty; immutable after creation.
	Services []string `json:"services"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is when the branch was created.
	CreatedAt time.Time `json:"created_at"`

	// CredentialValidated reports whether the AI API key verified
	// successfully against the provider at creation time.
	CredentialValidated bool `json:"gemini_api_validated"`

	// TerminalSession holds the most recent web-terminal session, if any.
	TerminalSession *TerminalSession `json:"terminal_session,omitempty"`
}

// HasService reports whether the branch's container group includes the
// named service.
func (b *Branch) HasService(name string) bool {
	for _, s := range b.Services {
		if s == name {
			return true
		}
	}
	return false
}

// PrimaryService returns the service that hosts terminal sessions: the
// first service of the group.
func (b *Branch) PrimaryService() string {
	if len(b.Services) == 0 {
		return DefaultService
	}
	return b.Services[0]
}

// ServiceStatus is the per-service liveness report returned by the
// container controller.
type ServiceStatus struct {
	// Service is the container-group service name (branch suffix stripped).
	Service string `json:"service"`

	// State is one of: running, stopped, restarting, exited, unknown.
	State string `json:"state"`

	// ContainerID is the engine's container identifier, when known.
	ContainerID string `json:"container_id,omitempty"`

	// ContainerName is the engine's container name, when known.
	ContainerName string `json:"container_name,omitempty"`
}

// AnyRunning reports whether at least one service in the report is up.
func AnyRunning(statuses []ServiceStatus) bool {
	for _, s := range statuses {
		if s.State == "running" {
			return true
		}
	}
	return false
}

// nameRegex validates branch names: they must start with an alphanumeric
// character, continue with alphanumerics, underscores, or hyphens, and
// stay within 63 characters total. The limit keeps derived identifiers
// (VCS branch, compose project, directory name) within engine limits.
var nameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)

// ValidateName checks whether name is a legal branch name.
func ValidateName(name string) error {
	if name == "" {
		return E(KindInvalidRequest, "branch name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return E(KindInvalidRequest, fmt.Sprintf("invalid branch name %q: must start with an alphanumeric character, contain only alphanumerics, underscores, and hyphens, and be at most 63 characters", name))
	}
	return nil
}
