package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/syaghoubi00/pinup/internal/version"
)

// NewApp creates the CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "pinup",
		Usage:   "Update pinned package versions in Containerfiles",
		Version: version.Version(),
		Description: `pinup scans a Containerfile or Dockerfile for explicitly pinned package
versions, asks each build stage's base image for the latest available
versions, and rewrites the pins in place after showing you the diff.

Examples:
  pinup update
  pinup update -f docker/Containerfile
  pinup update --yes --socket unix:///var/run/docker.sock`,
		Commands: []*cli.Command{
			updateCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}
