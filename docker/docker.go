// Package docker implements the worker launcher on top of the Docker
// Engine API. Worker containers are identified by a name prefix.
package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/neuropathbasel-pub/CQmanager/config"
	"github.com/neuropathbasel-pub/CQmanager/logger"
)

// Launcher starts, stops and counts worker containers through the
// docker daemon. It implements scheduler.Launcher.
type Launcher struct {
	conf   config.Docker
	paths  config.Paths
	client *client.Client
	log    logger.Logger
}

// NewLauncher connects to the docker daemon and returns a Launcher.
func NewLauncher(conf config.Docker, paths config.Paths, log logger.Logger) (*Launcher, error) {
	dclient, err := newDockerClient()
	if err != nil {
		return nil, fmt.Errorf("connecting to docker daemon: %w", err)
	}
	return &Launcher{conf: conf, paths: paths, client: dclient, log: log}, nil
}

// RunningCount returns the number of running containers whose name
// starts with prefix.
func (l *Launcher) RunningCount(ctx context.Context, prefix string) (int, error) {
	names, err := l.runningNames(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// IsRunning reports whether a container with the exact given name is
// running.
func (l *Launcher) IsRunning(ctx context.Context, name string) (bool, error) {
	names, err := l.runningNames(ctx, name)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Launch creates and starts a worker container running the given
// command. The container is detached; the scheduler observes its
// outcome through status files, not through the container itself.
func (l *Launcher) Launch(ctx context.Context, command []string, name string) error {
	created, err := l.client.ContainerCreate(ctx,
		&container.Config{
			Image: l.conf.Image,
			Cmd:   command,
			Env: []string{
				"CONTAINERS_LOG_LEVEL=" + l.conf.LogLevel,
			},
		},
		&container.HostConfig{
			AutoRemove:  l.conf.AutoRemove,
			NetworkMode: container.NetworkMode(l.conf.Network),
			Binds: []string{
				l.paths.IdatDirectory + ":" + l.paths.IdatDirectory,
				l.paths.ResultsDirectory + ":" + l.paths.ResultsDirectory,
				l.paths.ManifestsDirectory + ":" + l.paths.ManifestsDirectory,
			},
		},
		nil, nil, name,
	)
	if err != nil {
		return fmt.Errorf("creating container %s: %w", name, err)
	}

	err = l.client.ContainerStart(ctx, created.ID, container.StartOptions{})
	if err != nil {
		return fmt.Errorf("starting container %s: %w", name, err)
	}

	l.log.Debug("Started worker container", "container", name, "id", created.ID)
	return nil
}

// StopAll stops all running containers whose name starts with prefix
// and returns the names of the containers it stopped.
func (l *Launcher) StopAll(ctx context.Context, prefix string) ([]string, error) {
	list, err := l.running(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var stopped []string
	for _, c := range list {
		name := containerName(c.Names)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := l.client.ContainerStop(ctx, c.ID, container.StopOptions{}); err != nil {
			l.log.Error("Error stopping container", "error", err, "container", name)
			continue
		}
		stopped = append(stopped, name)
	}
	return stopped, nil
}

// Close releases the docker client's resources.
func (l *Launcher) Close() error {
	return l.client.Close()
}

func (l *Launcher) runningNames(ctx context.Context, prefix string) ([]string, error) {
	list, err := l.running(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range list {
		name := containerName(c.Names)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (l *Launcher) running(ctx context.Context, name string) ([]types.Container, error) {
	// The name filter matches substrings; prefix matching is applied
	// by the callers on the returned names.
	return l.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("status", "running"),
			filters.Arg("name", name),
		),
	})
}

// containerName strips the leading slash the docker API puts on
// container names.
func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}
