package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Presto-io/symfix/internal/escape"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, escape.DefaultRule, cfg.Rule.Escape())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
rule:
  field: latex
  prefix: ta
snippet_width: 20
verify:
  url: http://127.0.0.1:5173
  timeout: 5s
  headless: false
watch:
  debounce: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Rule{Field: "latex", Prefix: "ta"}, cfg.Rule)
	assert.Equal(t, 20, cfg.SnippetWidth)
	assert.Equal(t, "http://127.0.0.1:5173", cfg.Verify.URL)
	assert.Equal(t, 5*time.Second, cfg.Verify.Timeout)
	assert.False(t, cfg.Verify.Headless)
	assert.Equal(t, "Ready", cfg.Verify.WaitText)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "rule:\n  field: latex\n  prefix: ta\n")
	t.Setenv("SYMFIX_PREFIX", "fa")
	t.Setenv("SYMFIX_VERIFY_WAIT_TEXT", "Loaded")
	t.Setenv("SYMFIX_VERIFY_HEADLESS", "false")
	t.Setenv("SYMFIX_WATCH_DEBOUNCE", "50ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, escape.Rule{Field: "latex", Prefix: "fa"}, cfg.Rule.Escape())
	assert.Equal(t, "Loaded", cfg.Verify.WaitText)
	assert.False(t, cfg.Verify.Headless)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
}

func TestRuleEscape(t *testing.T) {
	t.Setenv("SYMFIX_FIELD", "symbol")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, escape.Rule{Field: "symbol", Prefix: "fa"}, cfg.Rule.Escape())

	cfg.Rule.Field = "sym bol"
	assert.ErrorIs(t, cfg.Validate(), escape.ErrInvalidRule)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "rules:\n  field: cmd\n"))
	assert.ErrorContains(t, err, "rules")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("SYMFIX_SNIPPET_WIDTH", "wide")
	_, err := Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad field", func(c *Config) { c.Rule.Field = "c md" }},
		{"bad prefix", func(c *Config) { c.Rule.Prefix = "" }},
		{"negative snippet", func(c *Config) { c.SnippetWidth = -1 }},
		{"bad url", func(c *Config) { c.Verify.URL = "localhost:1420" }},
		{"no screenshot", func(c *Config) { c.Verify.Screenshot = "" }},
		{"zero timeout", func(c *Config) { c.Verify.Timeout = 0 }},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, Default().Validate())
}
