package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"clusterlink/cmd/clusterlinkd/ui"
	"clusterlink/config"

	"github.com/spf13/cobra"
)

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon config file",
	}
	cmd.AddCommand(configInitCmd(g))
	cmd.AddCommand(configShowCmd(g))
	return cmd
}

func configInitCmd(g *globals) *cobra.Command {
	var (
		force   bool
		baseURL string
		token   string
		machine string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(g.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", g.configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat config: %w", err)
			}

			cfg := &config.Config{
				API:           config.API{BaseURL: baseURL, Token: token},
				ActiveMachine: machine,
			}
			if err := cfg.Normalize(); err != nil {
				return err
			}
			if err := cfg.Save(g.configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Wrote %s.", g.configPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	cmd.Flags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "Cloud API base URL")
	cmd.Flags().StringVar(&token, "token", "", "Cloud API token")
	cmd.Flags().StringVar(&machine, "machine", "", "Active machine ID")
	return cmd
}

func configShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			token := ui.Muted("(none)")
			if cfg.LoggedIn() {
				token = ui.Muted("(set)")
			}
			machine := cfg.ActiveMachine
			if machine == "" {
				machine = ui.Muted("(none)")
			}

			fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("  ",
				ui.KV("Path", g.configPath),
				ui.KV("API", cfg.API.BaseURL),
				ui.KV("Token", token),
				ui.KV("Logged in", strconv.FormatBool(cfg.LoggedIn())),
				ui.KV("API timeout", cfg.API.Timeout.String()),
				ui.KV("Poll interval", cfg.PollInterval.String()),
				ui.KV("Active machine", machine),
				ui.KV("Data root", cfg.DataRoot),
				ui.KV("Log", cfg.LogLevel+"/"+cfg.LogFormat),
			))
			return nil
		},
	}
}
