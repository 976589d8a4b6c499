package porter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/shell"
	"go.uber.org/zap"
)

// Wiper removes empty directories left behind in the endpoint's staging
// area, the Go rendering of remote.py's Wiper. It is a no-op when the
// endpoint has no staging area configured (files landed directly in its
// buffer, so nothing ever accumulates there).
type Wiper struct {
	remoteTpl *shell.Template
	params    map[string]string
	staging   string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewWiper builds a Wiper from the same Config a Porter for the same
// endpoint would use.
func NewWiper(cfg Config, logger *zap.Logger) (*Wiper, error) {
	if cfg.User == "" || cfg.Host == "" {
		return nil, fmt.Errorf("wiper: user and host must both be specified")
	}
	remoteRaw, ok := cfg.Commands["remote"]
	if !ok {
		return nil, fmt.Errorf(`wiper: command "remote" not provided`)
	}
	if !strings.Contains(remoteRaw, "{command}") {
		return nil, fmt.Errorf(`wiper: "remote" command must contain {command}`)
	}

	params := map[string]string{"user": cfg.User, "host": cfg.Host, "buffer": cfg.Buffer}
	if cfg.Staging != "" {
		params["staging"] = cfg.Staging
	}

	allowed := map[string]bool{}
	for _, name := range allowedPlaceholders {
		allowed[name] = true
	}
	for name := range params {
		allowed[name] = true
	}

	remoteTpl, err := shell.NewTemplate(remoteRaw, allowed)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Wiper{remoteTpl: remoteTpl, params: params, staging: cfg.Staging, timeout: cfg.Timeout, logger: logger}, nil
}

// Run removes empty directories under the staging area. It does nothing if
// no staging area is configured.
func (w *Wiper) Run(ctx context.Context) error {
	if w.staging == "" {
		return nil
	}
	cmd := w.remoteTpl.Render(withExtra(w.params, "command",
		"find "+w.staging+" -type d -empty -mindepth 1 -delete"))
	res, err := shell.Run(ctx, cmd, w.timeout)
	if err != nil {
		return fmt.Errorf("wiper: running command: %w", err)
	}
	if res.Status != model.StatusOK {
		w.logger.Warn("wiper command failed", zap.String("cmd", cmd), zap.String("stderr", res.Stderr))
	}
	return nil
}
