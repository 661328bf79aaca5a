// Package engine talks to the local container runtime: it discovers the
// Docker or Podman socket and runs short-lived containers that query a base
// image's package manager for available versions.
package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNoSocket is returned when neither a Docker nor a Podman socket can be
// found on this host.
var ErrNoSocket = errors.New("no container runtime socket found")

// runtimes lists the supported container runtimes in probe order.
var runtimes = []string{"docker", "podman"}

// socketPaths returns the candidate socket paths for a runtime, rootless
// socket first.
func socketPaths(runtime string, uid int) []string {
	switch runtime {
	case "docker":
		return []string{
			fmt.Sprintf("/run/user/%d/docker.sock", uid),
			"/var/run/docker.sock",
		}
	case "podman":
		return []string{
			fmt.Sprintf("/run/user/%d/podman/podman.sock", uid),
			"/var/run/podman/podman.sock",
		}
	default:
		return nil
	}
}

// DetectSocket probes for an available container runtime socket and returns
// it as a unix:// host URL. Docker is preferred over Podman, and for each
// the rootless user socket is preferred over the rootful one. A runtime
// whose binary is not on PATH is not probed.
func DetectSocket() (string, error) {
	uid := os.Getuid()
	for _, runtime := range runtimes {
		if _, err := exec.LookPath(runtime); err != nil {
			continue
		}
		for _, path := range socketPaths(runtime, uid) {
			if _, err := os.Stat(path); err == nil {
				return "unix://" + path, nil
			}
		}
	}
	return "", ErrNoSocket
}
