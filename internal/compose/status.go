package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/hovel-sh/hovel/internal/model"
)

// Compose labels the engine stamps on every container it creates. The
// project label scopes discovery to one branch's group; the service
// label recovers which spec entry a container belongs to.
const (
	labelComposeProject = "com.docker.compose.project"
	labelComposeService = "com.docker.compose.service"
)

// DockerStatus answers liveness queries through the Docker Engine SDK.
// Discovering containers by label rather than by name survives engine
// restarts and container re-creation, since compose re-stamps the same
// labels every time.
type DockerStatus struct {
	cli *client.Client
}

// NewDockerStatus creates a DockerStatus using the environment's engine
// endpoint (DOCKER_HOST et al.), with API version negotiation so one
// binary works against mixed engine versions.
func NewDockerStatus() (*DockerStatus, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerStatus{cli: cli}, nil
}

// Ping verifies the engine is reachable.
func (d *DockerStatus) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker engine is not responding: %w", err)
	}
	return nil
}

// Close releases the SDK client.
func (d *DockerStatus) Close() error {
	return d.cli.Close()
}

// ProjectStatus lists the containers of a compose project (including
// stopped ones) and maps each to a per-service state. The branch name
// is used to strip the per-branch suffix from service names so callers
// see the template's base names.
func (d *DockerStatus) ProjectStatus(ctx context.Context, project, branch string) ([]model.ServiceStatus, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", labelComposeProject+"="+project),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers for project %s: %w", project, err)
	}

	statuses := make([]model.ServiceStatus, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			// The API reports names with a leading slash.
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		statuses = append(statuses, model.ServiceStatus{
			Service:       stripServiceSuffix(c.Labels[labelComposeService], branch),
			State:         normalizeState(c.State),
			ContainerID:   c.ID,
			ContainerName: name,
		})
	}
	return statuses, nil
}

// normalizeState maps the engine's container states onto the
// controller's state vocabulary.
func normalizeState(state string) string {
	switch state {
	case "running", "restarting", "exited":
		return state
	case "created", "paused", "removing", "dead":
		return "stopped"
	default:
		return "unknown"
	}
}

// stripServiceSuffix removes the "-<branch>" suffix from a compose
// service name, matching case-insensitively. Names without the suffix
// pass through unchanged.
func stripServiceSuffix(service, branch string) string {
	if branch == "" {
		return service
	}
	suffix := "-" + branch
	if len(service) > len(suffix) && strings.EqualFold(service[len(service)-len(suffix):], suffix) {
		return service[:len(service)-len(suffix)]
	}
	return service
}
