// Package terminal starts interactive web-terminal sessions inside
// branch containers.
//
// A session is a ttyd process launched in the branch's primary service,
// listening on the branch's derived terminal port and serving the
// configured command-line AI tool. Sessions are one-shot: ttyd's -o
// flag makes the process exit when the client disconnects, so no
// liveness tracking is kept and a stale session record is simply
// overwritten by the next start.
package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hovel-sh/hovel/internal/model"
)

// ExecRunner starts a detached process inside a running service.
// Satisfied by the compose controller.
type ExecRunner interface {
	ExecDetached(ctx context.Context, workspace, service, command string) error
}

// Manager launches terminal sessions.
type Manager struct {
	runtime     ExecRunner
	host        string
	toolCommand string
	log         zerolog.Logger
}

// NewManager creates a Manager. host is the advertise hostname used in
// session URLs; toolCommand is the program ttyd runs (default "gemini").
func NewManager(runtime ExecRunner, host, toolCommand string, log zerolog.Logger) *Manager {
	return &Manager{runtime: runtime, host: host, toolCommand: toolCommand, log: log}
}

// Start launches a ttyd session inside the given service of the
// branch's container group. serviceRef must be the service key as the
// rendered spec names it. The caller is responsible for persisting the
// returned session into the branch record.
func (m *Manager) Start(ctx context.Context, branch *model.Branch, serviceRef string) (*model.TerminalSession, error) {
	if branch.Status != model.StatusRunning {
		return nil, model.Ef(model.KindInvalidRequest, "branch %q is not running (status %s)", branch.Name, branch.Status)
	}

	ttydPort := branch.Port + model.TTYDPortOffset

	// -o: exit once the client disconnects. -W: writable terminal.
	command := fmt.Sprintf("ttyd -o -W -p %d %s", ttydPort, m.toolCommand)

	if err := m.runtime.ExecDetached(ctx, branch.WorkspacePath, serviceRef, command); err != nil {
		return nil, model.WrapE(model.KindInternal, fmt.Sprintf("failed to start terminal session for %q", branch.Name), err)
	}

	session := &model.TerminalSession{
		Port:      ttydPort,
		URL:       fmt.Sprintf("http://%s:%d", m.host, ttydPort),
		StartedAt: time.Now().UTC(),
		Command:   command,
	}

	m.log.Info().Str("branch", branch.Name).Int("ttyd_port", ttydPort).Msg("terminal session started")
	return session, nil
}
