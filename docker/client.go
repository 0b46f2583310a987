package docker

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/docker/docker/client"
)

var apiVersionRe = regexp.MustCompile(`[0-9.]+`)

// newDockerClient returns a docker client pinned to an API version the
// daemon accepts.
func newDockerClient() (*client.Client, error) {
	dclient, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		return nil, err
	}
	if os.Getenv("DOCKER_API_VERSION") != "" {
		return dclient, nil
	}

	// Probe the daemon once. On a client/server version mismatch the
	// daemon's error names the version it supports:
	//   client is newer than server (client API version: 1.26, server API version: 1.24)
	// Pin the client to the server's version and reconnect.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if _, err := dclient.ServerVersion(ctx); err != nil {
		versions := apiVersionRe.FindAllString(err.Error(), -1)
		if len(versions) < 2 {
			return nil, fmt.Errorf("can't connect docker client: %v", err)
		}
		os.Setenv("DOCKER_API_VERSION", versions[1])
		dclient.Close()
		return client.NewClientWithOpts(client.FromEnv)
	}
	return dclient, nil
}
