// Package config loads symfix settings: built-in defaults, then an optional
// YAML file, then SYMFIX_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Presto-io/symfix/internal/escape"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SYMFIX_"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the full symfix configuration.
type Config struct {
	Rule         Rule   `yaml:"rule"`
	SnippetWidth int    `yaml:"snippet_width" env:"SNIPPET_WIDTH"`
	Verify       Verify `yaml:"verify" envPrefix:"VERIFY_"`
	Watch        Watch  `yaml:"watch" envPrefix:"WATCH_"`
}

// Rule selects the literals to correct. See escape.Rule.
type Rule struct {
	Field  string `yaml:"field" env:"FIELD"`
	Prefix string `yaml:"prefix" env:"PREFIX"`
}

// Escape converts r for escape.New.
func (r Rule) Escape() escape.Rule {
	return escape.Rule{Field: r.Field, Prefix: r.Prefix}
}

// Verify controls the browser check run against the consuming application.
type Verify struct {
	URL        string        `yaml:"url" env:"URL"`
	WaitText   string        `yaml:"wait_text" env:"WAIT_TEXT"`
	Screenshot string        `yaml:"screenshot" env:"SCREENSHOT"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Headless   bool          `yaml:"headless" env:"HEADLESS"`
}

// Watch controls the rewrite watcher.
type Watch struct {
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Rule:         Rule{Field: escape.DefaultRule.Field, Prefix: escape.DefaultRule.Prefix},
		SnippetWidth: escape.DefaultSnippetWidth,
		Verify: Verify{
			URL:        "http://localhost:1420",
			WaitText:   "Ready",
			Screenshot: "verification/screenshot_layout.png",
			Timeout:    30 * time.Second,
			Headless:   true,
		},
		Watch: Watch{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	if err := c.Rule.Escape().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.SnippetWidth < 0 {
		return fmt.Errorf("%w: snippet_width must not be negative", ErrInvalid)
	}
	if err := c.Verify.Validate(); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must not be negative", ErrInvalid)
	}
	return nil
}

// Validate checks the verification settings.
func (v Verify) Validate() error {
	u, err := url.Parse(v.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: verify.url %q must be an http(s) URL", ErrInvalid, v.URL)
	}
	if v.Screenshot == "" {
		return fmt.Errorf("%w: verify.screenshot is required", ErrInvalid)
	}
	if v.Timeout <= 0 {
		return fmt.Errorf("%w: verify.timeout must be positive", ErrInvalid)
	}
	return nil
}
