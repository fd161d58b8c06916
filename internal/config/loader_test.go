package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setConfigHome points the user config directory at a temp dir and returns
// the setup-go directory inside it
func setConfigHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", home)

	configDir, err := os.UserConfigDir()
	require.NoError(t, err)

	dir := filepath.Join(configDir, Name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	return dir
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("go-version-file", "", "")
	cmd.Flags().String("working-directory", "", "")
	cmd.Flags().String("job-name", "", "")
	cmd.Flags().Bool("cache", true, "")
	cmd.Flags().String("log-level", "", "")

	return cmd
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	loader := NewLoader()
	loader.setupViperDefaults()

	assert.Equal(t, "go.mod", viper.GetString("go-version-file"))
	assert.Equal(t, "go.sum", viper.GetString("cache-dependency-path"))
	assert.Equal(t, ".", viper.GetString("working-directory"))
	assert.Equal(t, true, viper.GetBool("cache"))
	assert.Equal(t, "local", viper.GetString("store"))
	assert.Equal(t, "refs/heads/master", viper.GetString("primary-branch"))
}

// envMap builds a getenv function over a fixed set of variables
func envMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoader_MergeInputs(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".setup-go.yml"), []byte("job-name: from-file\nstore: local\n"), 0o644)
	require.NoError(t, err)

	loader := NewLoader(WithGetenv(envMap(map[string]string{
		"INPUT_GO-VERSION-FILE": "go.work",
		"INPUT_CACHE":           "false",
		"INPUT_S3-PATH-STYLE":   "true",
		"INPUT_JOB-NAME":        "from-input",
		"INPUT_STORE":           "",
	})))
	loader.setupViperDefaults()
	loader.loadLocalConfig(dir)
	loader.mergeInputs()

	assert.Equal(t, "go.work", viper.GetString("go-version-file"))
	assert.Equal(t, false, viper.GetBool("cache"))
	assert.Equal(t, true, viper.GetBool("s3-path-style"))
	// Inputs beat config files
	assert.Equal(t, "from-input", viper.GetString("job-name"))
	// Empty inputs count as unset
	assert.Equal(t, "local", viper.GetString("store"))
	// Unset inputs keep their defaults
	assert.Equal(t, "go.sum", viper.GetString("cache-dependency-path"))
}

func TestNewLoader_DefaultsToProcessEnv(t *testing.T) {
	t.Setenv("INPUT_JOB-NAME", "from-process")

	assert.Equal(t, "from-process", NewLoader().input("job-name"))
	assert.Equal(t, "from-process", NewLoader(WithGetenv(nil)).input("job-name"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	t.Run("loads yaml config", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		dir := setConfigHome(t)
		configContent := `job-name: global
store: s3
s3-bucket: shared`
		err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configContent), 0o644)
		require.NoError(t, err)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "global", viper.GetString("job-name"))
		assert.Equal(t, "s3", viper.GetString("store"))
		assert.Equal(t, "shared", viper.GetString("s3-bucket"))
	})

	t.Run("loads json config", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		dir := setConfigHome(t)
		configContent := `{
  "primary-branch": "refs/heads/main",
  "cache": false
}`
		err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(configContent), 0o644)
		require.NoError(t, err)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "refs/heads/main", viper.GetString("primary-branch"))
		assert.Equal(t, false, viper.GetBool("cache"))
	})

	t.Run("handles missing config gracefully", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		setConfigHome(t)

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadGlobalConfig()
		})
		assert.Equal(t, "", viper.GetString("job-name"))
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	t.Run("loads local config from directory", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		tempDir := t.TempDir()
		configContent := `job-name: build
cache-dependency-path: tools/go.sum`
		err := os.WriteFile(filepath.Join(tempDir, ".setup-go.yml"), []byte(configContent), 0o644)
		require.NoError(t, err)

		loader := NewLoader()
		loader.loadLocalConfig(tempDir)

		assert.Equal(t, "build", viper.GetString("job-name"))
		assert.Equal(t, "tools/go.sum", viper.GetString("cache-dependency-path"))
	})

	t.Run("walks up directory tree to find config", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		tempDir := t.TempDir()
		subDir := filepath.Join(tempDir, "subdir", "nested")
		require.NoError(t, os.MkdirAll(subDir, 0o755))

		err := os.WriteFile(filepath.Join(tempDir, ".setup-go.toml"), []byte(`job-name = "parent"`), 0o644)
		require.NoError(t, err)

		loader := NewLoader()
		loader.loadLocalConfig(subDir)

		assert.Equal(t, "parent", viper.GetString("job-name"))
	})

	t.Run("handles missing directory", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadLocalConfig(filepath.Join(t.TempDir(), "nonexistent"))
		})
	})
}

func TestLoader_StartDir(t *testing.T) {
	t.Run("defaults to current directory", func(t *testing.T) {
		loader := NewLoader(WithGetenv(envMap(nil)))
		assert.Equal(t, ".", loader.startDir(newTestCommand()))
	})

	t.Run("uses input variable", func(t *testing.T) {
		loader := NewLoader(WithGetenv(envMap(map[string]string{"INPUT_WORKING-DIRECTORY": "/from/env"})))
		assert.Equal(t, "/from/env", loader.startDir(newTestCommand()))
	})

	t.Run("flag wins", func(t *testing.T) {
		loader := NewLoader(WithGetenv(envMap(map[string]string{"INPUT_WORKING-DIRECTORY": "/from/env"})))
		cmd := newTestCommand()
		require.NoError(t, cmd.Flags().Set("working-directory", "/from/flag"))
		assert.Equal(t, "/from/flag", loader.startDir(cmd))
	})
}

func TestLoader_LoadForCommand_InputWorkingDirectory(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setConfigHome(t)

	work := t.TempDir()
	err := os.WriteFile(filepath.Join(work, ".setup-go.yml"), []byte("job-name: discovered\n"), 0o644)
	require.NoError(t, err)

	loader := NewLoader(WithGetenv(envMap(map[string]string{"INPUT_WORKING-DIRECTORY": work})))
	cfg, err := loader.LoadForCommand(newTestCommand())
	require.NoError(t, err)

	// The config file is found from the input directory, not the process cwd
	assert.Equal(t, "discovered", cfg.JobName)
	assert.Equal(t, work, cfg.WorkingDirectory)
	assert.Equal(t, filepath.Join(work, "go.mod"), cfg.GoVersionFile)
}

func TestLoader_BindCommandFlags(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("job-name", "vet"))
	require.NoError(t, cmd.Flags().Set("cache", "false"))

	loader := NewLoader()
	loader.bindCommandFlags(cmd)

	assert.Equal(t, "vet", viper.GetString("job-name"))
	assert.Equal(t, false, viper.GetBool("cache"))
	// Flags the command does not define are skipped
	assert.Equal(t, "", viper.GetString("s3-bucket"))
}

func TestLoader_LoadForCommand_Integration(t *testing.T) {
	t.Run("flags override inputs override local override global", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		globalDir := setConfigHome(t)
		globalContent := `job-name: global
log-level: warn
primary-branch: refs/heads/trunk
cache-dependency-path: global.sum`
		err := os.WriteFile(filepath.Join(globalDir, "config.yml"), []byte(globalContent), 0o644)
		require.NoError(t, err)

		localDir := t.TempDir()
		localContent := `job-name: local
log-level: info
primary-branch: refs/heads/main`
		err = os.WriteFile(filepath.Join(localDir, ".setup-go.yml"), []byte(localContent), 0o644)
		require.NoError(t, err)

		t.Setenv("INPUT_LOG-LEVEL", "error")

		cmd := newTestCommand()
		require.NoError(t, cmd.Flags().Set("working-directory", localDir))
		require.NoError(t, cmd.Flags().Set("job-name", "flag"))

		loader := NewLoader()
		cfg, err := loader.LoadForCommand(cmd)
		require.NoError(t, err)

		// Flag value should win
		assert.Equal(t, "flag", cfg.JobName)
		// Input variable beats both config files
		assert.Equal(t, "error", cfg.LogLevel)
		// Local config should override global
		assert.Equal(t, "refs/heads/main", cfg.PrimaryBranch)
		// Global config fills in the rest, resolved against the working directory
		assert.Equal(t, filepath.Join(localDir, "global.sum"), cfg.CacheDependencyPath)
		assert.Equal(t, filepath.Join(localDir, "go.mod"), cfg.GoVersionFile)
		assert.Equal(t, localDir, cfg.WorkingDirectory)
		assert.True(t, cfg.Cache)
	})
}
