// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"

	"maxbridge/pkg/types"
)

var (
	// globalConfig caches the loaded configuration for Get/Load.
	globalConfig *Config
	// configPath records where the cached configuration was loaded from
	// ("" when defaults were used).
	configPath string
	// errLastLoad records the most recent load failure for LastLoadError.
	errLastLoad error
	// configDirOverride pins the config directory for tests, which cannot
	// rely on os.UserHomeDir following a faked HOME on every platform.
	configDirOverride string
	// configFilePathOverride forces loading from a specific file, set by
	// the --config flag.
	configFilePathOverride string
)

// Load returns the cached configuration, reading it from disk on first use.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{
		ConfigFilePath: types.FilesystemPath(configFilePathOverride),
	})
	if err != nil {
		errLastLoad = err
		return nil, err
	}

	globalConfig = cfg
	configPath = path
	errLastLoad = nil
	return cfg, nil
}

// Get returns the configuration, falling back to defaults when loading
// fails. The failure stays retrievable through LastLoadError.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// LastLoadError returns the error from the most recent failed load,
// or nil if the last load succeeded.
func LastLoadError() error {
	return errLastLoad
}

// ConfigFilePath returns the path of the loaded config file, or ""
// when defaults are in effect.
func ConfigFilePath() string {
	return configPath
}

// SetConfigFilePathOverride forces subsequent loads to read the given
// file. The cached configuration is cleared so the override takes effect.
func SetConfigFilePathOverride(path string) {
	configFilePathOverride = path
	ResetCache()
}

// SetConfigDirOverride pins the config directory to dir. Tests use this
// instead of faking HOME, which os.UserHomeDir does not consult everywhere.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// ResetCache clears the cached configuration so the next Load rereads disk.
// Overrides stay in place.
func ResetCache() {
	globalConfig = nil
	configPath = ""
	errLastLoad = nil
}

// Reset clears the cache and all overrides. Call from test cleanup to
// restore defaults.
func Reset() {
	ResetCache()
	configDirOverride = ""
	configFilePathOverride = ""
}
