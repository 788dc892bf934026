// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for maxbridge.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"syscall"

	"maxbridge/internal/config"
	"maxbridge/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose raises the log level to debug
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "maxbridge",
		Short: "A TCP bridge for Maxima's socket client mode",
		Long: TitleStyle.Render("maxbridge") + SubtitleStyle.Render(" - a TCP bridge for Maxima's socket client mode") + `

maxbridge listens on a local TCP port, launches a Maxima process with
'-s <port>' so the engine dials back in as a client, and relays the
newline-framed traffic between connected peers and a shared response
queue. It supervises the engine's readiness handshake and exposes an
optional localhost monitoring endpoint.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Install Maxima so 'maxima' resolves on PATH
  2. Optionally create a config file with: maxbridge config init
  3. Start the bridge with: maxbridge serve

` + SubtitleStyle.Render("Examples:") + `
  maxbridge serve                         Start the bridge and its engine
  maxbridge serve --monitor-addr :9390    Override the monitor address
  maxbridge config show                   Show the effective configuration
  maxbridge config path                   Print the config file location`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/maxbridge/config.cue)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	// go-install builds carry the module version in build info instead of
	// ldflags. Test binaries report "(devel)" and fall through.
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev (built from source)"
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	// Set custom config file path if provided via --config flag
	if cfgFile != "" {
		config.SetConfigFilePathOverride(cfgFile)
	}

	// Load configuration. serve treats a failed load as fatal through
	// config.LastLoadError; the config subcommands keep working on
	// defaults, so this only warns.
	if _, err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
