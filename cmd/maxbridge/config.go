// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"maxbridge/internal/config"

	"github.com/spf13/cobra"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage maxbridge configuration",
		Long: `View and manage the maxbridge configuration file.

The configuration lives in a CUE file at the platform config directory
(~/.config/maxbridge/config.cue on Linux). Every field is optional;
missing fields fall back to built-in defaults.`,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration in CUE form.

The output merges the config file (when one exists) over the built-in
defaults, so it always prints a complete configuration.`,
		RunE: runConfigShow,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  `Create a config file populated with the default values, unless one already exists.`,
		RunE:  runConfigInit,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE:  runConfigPath,
	}

	configSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a single configuration value and write the file back.

Valid keys: server.host, server.reply_to_peer, engine.command,
readiness.poll_interval, readiness.max_poll_cycles, monitor.enabled,
monitor.addr, log.level.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	stdout := cmd.OutOrStdout()
	cfg := config.Get()

	if path := config.ConfigFilePath(); path != "" {
		fmt.Fprintln(stdout, SubtitleStyle.Render("loaded from ")+PathStyle.Render(path))
	} else {
		fmt.Fprintln(stdout, SubtitleStyle.Render("no config file found, showing defaults"))
	}
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, config.GenerateCUE(cfg))
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	stdout := cmd.OutOrStdout()

	cfgPath, err := defaultConfigFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintln(stdout, WarningStyle.Render("Config file already exists: ")+PathStyle.Render(cfgPath))
		return nil
	}

	if err := config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintln(stdout, SuccessStyle.Render("Created ")+PathStyle.Render(cfgPath))
	fmt.Fprintln(stdout, SubtitleStyle.Render("Edit it and run 'maxbridge config show' to verify."))
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	stdout := cmd.OutOrStdout()

	if path := config.ConfigFilePath(); path != "" {
		fmt.Fprintln(stdout, path)
		return nil
	}

	cfgPath, err := defaultConfigFilePath()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, cfgPath+" "+SubtitleStyle.Render("(not created yet)"))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch key {
	case "server.host":
		host := config.HostName(value)
		if ok, errs := host.IsValid(); !ok {
			return errs[0]
		}
		cfg.Server.Host = host

	case "server.reply_to_peer":
		cfg.Server.ReplyToPeer = value == "true" || value == "1"

	case "engine.command":
		command := config.EngineCommand(value)
		if ok, errs := command.IsValid(); !ok {
			return errs[0]
		}
		cfg.Engine.Command = command

	case "readiness.poll_interval":
		interval := config.Duration(value)
		if ok, errs := interval.IsValid(); !ok {
			return errs[0]
		}
		cfg.Readiness.PollInterval = interval

	case "readiness.max_poll_cycles":
		cycles, err := strconv.Atoi(value)
		if err != nil || cycles <= 0 {
			return fmt.Errorf("invalid readiness.max_poll_cycles: must be a positive integer, got %q", value)
		}
		cfg.Readiness.MaxPollCycles = cycles

	case "monitor.enabled":
		cfg.Monitor.Enabled = value == "true" || value == "1"

	case "monitor.addr":
		addr := config.MonitorAddr(value)
		if ok, errs := addr.IsValid(); !ok {
			return errs[0]
		}
		cfg.Monitor.Addr = addr

	case "log.level":
		level := config.LogLevel(value)
		if ok, errs := level.IsValid(); !ok {
			return errs[0]
		}
		cfg.Log.Level = level

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: server.host, server.reply_to_peer, engine.command, readiness.poll_interval, readiness.max_poll_cycles, monitor.enabled, monitor.addr, log.level", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Set ")+CmdStyle.Render(key)+" = "+value)
	return nil
}

// defaultConfigFilePath is where config init would materialize the file.
func defaultConfigFilePath() (string, error) {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt), nil
}
