package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsTracingFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/.env", []byte(
		"OTEL_ENABLED=true\nOTEL_EXPORTER_OTLP_ENDPOINT=collector:4318\n",
	), 0o600))
	t.Chdir(dir)

	// godotenv never overrides variables that are already set.
	for _, key := range []string{"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(key) })
		}
	}

	cfg := Load()

	assert.True(t, cfg.Otel.Enabled)
	assert.Equal(t, "collector:4318", cfg.Otel.Endpoint)
	assert.Equal(t, "art-curator-backend", cfg.Otel.ServiceName)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CURATOR_TEST_INT", "7")
	t.Setenv("CURATOR_TEST_BAD_INT", "seven")
	t.Setenv("CURATOR_TEST_DURATION", "45s")
	t.Setenv("CURATOR_TEST_NEG_DURATION", "-5s")
	t.Setenv("CURATOR_TEST_BOOL", "false")

	assert.Equal(t, 7, getEnvAsInt("CURATOR_TEST_INT", 3))
	assert.Equal(t, 3, getEnvAsInt("CURATOR_TEST_BAD_INT", 3))
	assert.Equal(t, 45*time.Second, getEnvAsDuration("CURATOR_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvAsDuration("CURATOR_TEST_NEG_DURATION", time.Minute))
	assert.False(t, getEnvAsBool("CURATOR_TEST_BOOL", true))
	assert.True(t, getEnvAsBool("CURATOR_TEST_MISSING_BOOL", true))
}
