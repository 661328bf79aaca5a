package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gkampitakis/ciinfo"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/syaghoubi00/pinup/internal/config"
	"github.com/syaghoubi00/pinup/internal/engine"
	"github.com/syaghoubi00/pinup/internal/update"
)

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update pinned package versions in a Containerfile",
		ArgsUsage: "[CONTAINERFILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Path to the container file",
			},
			&cli.StringFlag{
				Name:  "socket",
				Usage: "Container runtime socket URL (default: autodetect)",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log level: debug, info, warning, error",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip prompting for confirmation before writing changes",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for one containerized version query",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a pinup config file (default: " + config.DefaultConfigFile + ")",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log := logrus.New()
			level, err := logrus.ParseLevel(cfg.Verbosity)
			if err != nil {
				return fmt.Errorf("invalid verbosity %q: %w", cfg.Verbosity, err)
			}
			log.SetLevel(level)

			socket := cfg.Socket
			if socket == "" {
				socket, err = engine.DetectSocket()
				if err != nil {
					return err
				}
			}
			log.Infof("using container runtime socket: %s", socket)

			dockerClient, err := engine.NewClient(socket)
			if err != nil {
				return fmt.Errorf("connect to container runtime: %w", err)
			}
			defer func() { _ = dockerClient.Close() }()

			updater := &update.Updater{
				Log:     log,
				Runner:  engine.NewRunner(dockerClient, log, cfg.QueryTimeout),
				Confirm: confirmFunc(cfg, log),
			}

			res, err := updater.Run(ctx, cfg.File)
			if err != nil {
				return err
			}
			if !res.Written {
				fmt.Printf("%s: no updates\n", cfg.File)
				return nil
			}
			fmt.Printf("%s: updated %d of %d stages\n", cfg.File, res.StagesPatched, res.Stages)
			return nil
		},
	}
}

// loadConfig layers the resolved configuration with CLI flag overrides.
// A positional argument wins over --file.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	overrides := make(map[string]any)
	if cmd.IsSet("file") {
		overrides["file"] = cmd.String("file")
	}
	if file := cmd.Args().First(); file != "" {
		overrides["file"] = file
	}
	if cmd.IsSet("socket") {
		overrides["socket"] = cmd.String("socket")
	}
	if cmd.IsSet("verbosity") {
		overrides["verbosity"] = cmd.String("verbosity")
	}
	if cmd.IsSet("yes") {
		overrides["yes"] = cmd.Bool("yes")
	}
	if cmd.IsSet("timeout") {
		overrides["query_timeout"] = cmd.Duration("timeout")
	}
	return config.Load(cmd.String("config"), overrides)
}

// confirmFunc builds the per-stage confirmation callback. With --yes, or
// when running unattended in CI, every change is accepted without a prompt.
func confirmFunc(cfg config.Config, log *logrus.Logger) func(diff string) bool {
	if cfg.Yes {
		return nil
	}
	if ciinfo.IsCI {
		log.Infof("running in CI (%s), applying updates without prompting", ciinfo.Name)
		return nil
	}

	stdin := bufio.NewReader(os.Stdin)
	return func(diff string) bool {
		fmt.Print(diff)
		fmt.Printf("Update %s? (y/N): ", cfg.File)
		answer, err := stdin.ReadString('\n')
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}
