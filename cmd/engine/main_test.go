package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, options{envFile: ".env"}, opts)
	})

	t.Run("short config and migrate", func(t *testing.T) {
		opts, err := parseFlags([]string{"-c", "engine.yaml", "--migrate", "up", "--env-file", ""})
		require.NoError(t, err)
		assert.Equal(t, "engine.yaml", opts.configPath)
		assert.Equal(t, "up", opts.migrate)
		assert.Empty(t, opts.envFile)
	})

	t.Run("unknown migrate command", func(t *testing.T) {
		_, err := parseFlags([]string{"--migrate", "sideways"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sideways")
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseFlags([]string{"--verbose"})
		assert.Error(t, err)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("empty path", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(""))
	})

	t.Run("sets unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		content := "TASKPULSE_TEST_FROM_FILE=file\nTASKPULSE_TEST_PRESET=file\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		t.Setenv("TASKPULSE_TEST_PRESET", "env")
		t.Setenv("TASKPULSE_TEST_FROM_FILE", "")
		require.NoError(t, os.Unsetenv("TASKPULSE_TEST_FROM_FILE"))

		require.NoError(t, loadEnvFile(path))

		assert.Equal(t, "file", os.Getenv("TASKPULSE_TEST_FROM_FILE"))
		assert.Equal(t, "env", os.Getenv("TASKPULSE_TEST_PRESET"))
	})
}
