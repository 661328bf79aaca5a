package version

import (
	"runtime/debug"
)

var version = "dev"

// Version returns the current version string
func Version() string {
	clientVersion := DockerClientVersion()
	if clientVersion != "" {
		return version + " (docker client " + clientVersion + ")"
	}
	return version
}

// DockerClientVersion returns the linked Docker client version from build info.
func DockerClientVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/docker/docker" {
			return dep.Version
		}
	}
	return ""
}

// Info contains detailed version information.
type Info struct {
	Version      string `json:"version"`
	DockerClient string `json:"docker_client,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
}

// GetInfo returns structured version information.
func GetInfo() Info {
	info := Info{
		Version:      version,
		DockerClient: DockerClientVersion(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
	}
	return info
}
