// Command wiregraph checks, lays out and plans runs of workflow documents
// from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wiregraph:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "wiregraph",
		Usage:                 "Check, lay out and plan runs of workflow graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Settings file (.yaml, .yml or .json)",
				Sources: cli.EnvVars("WIREGRAPH_CONFIG"),
			},
			&cli.StringFlag{
				Name:     "schemas",
				Aliases:  []string{"s"},
				Usage:    "Node type registry file (.yaml, .yml or .json)",
				Required: true,
				Sources:  cli.EnvVars("WIREGRAPH_SCHEMAS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error); overrides the settings file",
				Sources: cli.EnvVars("WIREGRAPH_LOG_LEVEL", "LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json); overrides the settings file",
				Sources: cli.EnvVars("WIREGRAPH_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "otlp-endpoint",
				Usage:   "OTLP/HTTP trace endpoint; tracing is off when empty",
				Sources: cli.EnvVars("WIREGRAPH_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
			},
		},
		Commands: []*cli.Command{
			newValidateCommand(),
			newPortsCommand(),
			newConnectCommand(),
			newLayoutCommand(),
			newPlanCommand(),
			newMergeCommand(),
			newOutputsCommand(),
		},
	}
}
