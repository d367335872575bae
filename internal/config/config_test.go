package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fliphashlb/internal/config"
)

func TestDefault_ReturnsUsableConfig(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, ":5000", cfg.ClientAddr)
	assert.Equal(t, ":6001", cfg.RegistrationAddr)
	assert.Equal(t, ":6003", cfg.MetricsAddr)
	assert.True(t, cfg.HealthCheck.Enabled)
	assert.Equal(t, "health check", cfg.HealthCheck.ProbeMessage)
	assert.False(t, cfg.Admin.RateLimit.Enabled)
	assert.False(t, cfg.Admin.Auth.Enabled)
}

func TestLoad_ValidYAML(t *testing.T) {
	yaml := `
client_addr: ":9090"
registration_addr: ":9091"
metrics_addr: ":9092"
dial_timeout: "500ms"
pipe_buffer: 8192
health_check:
  enabled: true
  interval: "5s"
  timeout: "1s"
  probe_message: "ping"
admin:
  enabled: true
  listen_addr: ":9999"
  rate_limit:
    enabled: true
    rps: 50
    burst: 100
  auth:
    enabled: true
    secret: "supersecret"
    exclude:
      - "/healthz"
`
	f := writeTempYAML(t, yaml)
	cfg, _, err := config.Load(f)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ClientAddr)
	assert.Equal(t, ":9091", cfg.RegistrationAddr)
	assert.Equal(t, ":9092", cfg.MetricsAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.ParsedDialTimeout())
	assert.Equal(t, 8192, cfg.PipeBuffer)
	assert.True(t, cfg.HealthCheck.Enabled)
	assert.Equal(t, "5s", cfg.HealthCheck.Interval)
	assert.Equal(t, "ping", cfg.HealthCheck.ProbeMessage)
	assert.True(t, cfg.Admin.RateLimit.Enabled)
	assert.Equal(t, 50.0, cfg.Admin.RateLimit.RPS)
	assert.True(t, cfg.Admin.Auth.Enabled)
	assert.Equal(t, "supersecret", cfg.Admin.Auth.Secret)
	assert.Contains(t, cfg.Admin.Auth.Exclude, "/healthz")
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	_, _, err := config.Load("/nonexistent/path/loadbalancer.yaml")
	assert.Error(t, err)
}

func TestLoad_EmptyClientAddr_ReturnsError(t *testing.T) {
	yaml := `
client_addr: ""
`
	f := writeTempYAML(t, yaml)
	_, _, err := config.Load(f)
	assert.Error(t, err, "an empty client_addr should be rejected")
}

func TestLoad_AuthEnabledWithoutSecret_ReturnsError(t *testing.T) {
	yaml := `
admin:
  auth:
    enabled: true
`
	f := writeTempYAML(t, yaml)
	_, _, err := config.Load(f)
	assert.Error(t, err, "auth.enabled without a secret should be rejected")
}

func TestLoad_MissingPipeBufferDefaultsTo4096(t *testing.T) {
	yaml := `
client_addr: ":7000"
`
	f := writeTempYAML(t, yaml)
	cfg, _, err := config.Load(f)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.PipeBuffer)
}

func TestHealthCheckCfg_ParsedInterval(t *testing.T) {
	cases := []struct {
		input    string
		expected time.Duration
	}{
		{"5s", 5 * time.Second},
		{"2m", 2 * time.Minute},
		{"", 3 * time.Second},
		{"0s", 3 * time.Second},
	}
	for _, tc := range cases {
		hc := config.HealthCheckCfg{Interval: tc.input}
		assert.Equal(t, tc.expected, hc.ParsedInterval(), "input: %q", tc.input)
	}
}

func TestHealthCheckCfg_ParsedTimeout(t *testing.T) {
	cases := []struct {
		input    string
		expected time.Duration
	}{
		{"3s", 3 * time.Second},
		{"", 1 * time.Second},
	}
	for _, tc := range cases {
		hc := config.HealthCheckCfg{Timeout: tc.input}
		assert.Equal(t, tc.expected, hc.ParsedTimeout(), "input: %q", tc.input)
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "loadbalancer-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
