// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/maxbridge/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/maxbridge/config.cue on macOS, %APPDATA%\maxbridge\config.cue
// on Windows). The package provides type-safe configuration access covering the bridge
// listener, the engine command, the readiness budget, the monitor endpoint, and logging.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations. Constraints the
// schema cannot express, such as port range ordering against merged defaults, are checked
// on the decoded Config via IsValid.
package config
