package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/naveenspark/watchlist/internal/config"
)

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default configuration file",
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: r.ConfigShow,
			},
		},
	}
}

func versionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(_ context.Context, _ *cli.Command) error {
			return r.writePlain("watchlist %s\n", version)
		},
	}
}

// ConfigInit writes the example configuration to --config or the default path.
func (r *Runner) ConfigInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.CreateFile(path); err != nil {
		return err
	}
	return r.writePlain("✓ wrote %s\n", path)
}

// ConfigShow prints the configuration after file, environment and flag
// overrides have been applied.
func (r *Runner) ConfigShow(_ context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(r.output).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
