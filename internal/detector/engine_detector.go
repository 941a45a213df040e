package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// ContainerLister is the subset of the Docker Engine API client used by EngineDetector.
type ContainerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// EngineDetector answers the same question as ContainerNameDetector through
// the Docker Engine API instead of the CLI.
type EngineDetector struct {
	Client ContainerLister
	Name   string
}

// NewEngineDetector connects to the engine at host, or to the environment's
// engine (DOCKER_HOST etc.) when host is empty.
func NewEngineDetector(host, name string) (*EngineDetector, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if strings.TrimSpace(host) != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &EngineDetector{Client: cli, Name: name}, nil
}

func (d *EngineDetector) Alive(ctx context.Context) (bool, error) {
	list, err := d.Client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("name", d.Name),
			filters.Arg("status", "running"),
		),
	})
	if err != nil {
		return false, fmt.Errorf("container list: %w", err)
	}
	for _, c := range list {
		if c.State != "" && c.State != "running" {
			continue
		}
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") == d.Name {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *EngineDetector) Describe() string { return "engine:" + d.Name }
