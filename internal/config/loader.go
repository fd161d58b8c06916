package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Name is the directory and file stem used for configuration files
const Name = "setup-go"

// inputPrefix is how the Actions runner passes step inputs
const inputPrefix = "INPUT_"

// Keys lists every configuration option. Each is also a flag name and the
// suffix of its INPUT_ environment variable.
var Keys = []string{
	"go-version-file",
	"cache-dependency-path",
	"working-directory",
	"job-name",
	"cache",
	"store",
	"cache-dir",
	"state-dir",
	"primary-branch",
	"s3-bucket",
	"s3-prefix",
	"s3-region",
	"s3-endpoint",
	"s3-path-style",
	"log-level",
}

// Loader handles configuration loading from various sources
type Loader struct {
	getenv func(string) string
}

// LoaderOption customizes a Loader
type LoaderOption func(*Loader)

// WithGetenv sets how INPUT_ variables are looked up. Defaults to os.Getenv.
func WithGetenv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		if getenv != nil {
			l.getenv = getenv
		}
	}
}

// NewLoader creates a new configuration loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{getenv: os.Getenv}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoadForCommand loads configuration for a command. Flags beat INPUT_
// variables, which beat the local config file, which beats the global one.
func (l *Loader) LoadForCommand(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(l.startDir(cmd))
	l.mergeInputs()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("go-version-file", DefaultGoVersionFile)
	viper.SetDefault("cache-dependency-path", DefaultCacheDependencyPath)
	viper.SetDefault("working-directory", DefaultWorkingDirectory)
	viper.SetDefault("cache", DefaultCache)
	viper.SetDefault("store", DefaultStore)
	viper.SetDefault("primary-branch", DefaultPrimaryBranch)
}

// input returns the Actions input variable for key, e.g.
// INPUT_GO-VERSION-FILE. Empty inputs count as unset.
func (l *Loader) input(key string) string {
	return l.getenv(inputPrefix + strings.ToUpper(key))
}

// mergeInputs layers INPUT_ variables over the config files read so far.
// Must run after loadGlobalConfig and loadLocalConfig.
func (l *Loader) mergeInputs() {
	inputs := make(map[string]any)

	for _, key := range Keys {
		if v := l.input(key); v != "" {
			inputs[key] = v
		}
	}

	if len(inputs) > 0 {
		_ = viper.MergeConfigMap(inputs)
	}
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return
	}

	globalDir := filepath.Join(configDir, Name)

	for _, ext := range configExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the nearest project config file over the global one
func (l *Loader) loadLocalConfig(dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(absDir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// startDir is where the local config search begins
func (l *Loader) startDir(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("working-directory"); f != nil && f.Changed {
		return f.Value.String()
	}

	if dir := l.input("working-directory"); dir != "" {
		return dir
	}

	return DefaultWorkingDirectory
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for _, key := range Keys {
		if f := cmd.Flags().Lookup(key); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
