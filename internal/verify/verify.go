// Package verify opens the application that consumes the corrected symbol
// table in a headless browser and saves a screenshot for manual review.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/Presto-io/symfix/internal/artifact"
	"github.com/Presto-io/symfix/internal/config"
)

// ErrNotRunning is returned when nothing listens at the application URL.
var ErrNotRunning = errors.New("application is not running")

// Probe dials the host and port of rawURL.
func Probe(ctx context.Context, rawURL string) error {
	addr, err := hostPort(rawURL)
	if err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrNotRunning, rawURL, err)
	}
	return conn.Close()
}

func hostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Run checks that the application answers, waits until an element shows
// cfg.WaitText, and writes a full-page screenshot to cfg.Screenshot.
// It returns the screenshot path.
func Run(ctx context.Context, cfg config.Verify, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	probeCtx, probeCancel := context.WithTimeout(ctx, 3*time.Second)
	err := Probe(probeCtx, cfg.URL)
	probeCancel()
	if err != nil {
		return "", err
	}

	l := launcher.New().Headless(cfg.Headless).Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()
	logger.Debug("browser launched", zap.String("control_url", controlURL))

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: cfg.URL})
	if err != nil {
		return "", fmt.Errorf("open %s: %w", cfg.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	if cfg.WaitText != "" {
		logger.Debug("waiting for text", zap.String("text", cfg.WaitText))
		if _, err := page.ElementR("body *", regexp.QuoteMeta(cfg.WaitText)); err != nil {
			return "", fmt.Errorf("wait for %q: %w", cfg.WaitText, err)
		}
	}

	img, err := page.Screenshot(true, nil)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	if err := artifact.Persist(cfg.Screenshot, img, 0o644); err != nil {
		return "", err
	}
	logger.Info("screenshot saved", zap.String("path", cfg.Screenshot), zap.Int("bytes", len(img)))
	return cfg.Screenshot, nil
}
