package whatsapp

import (
	"context"
	"time"
)

// HealthConfig configures proactive connection health monitoring — the
// channel periodically checks whether the client has gone silent for
// longer than whatsmeow's own keepalive would tolerate, and forces a
// reconnect through component J rather than waiting for a disconnect
// event that a half-open socket may never deliver.
type HealthConfig struct {
	Enabled           bool
	CheckInterval     time.Duration
	MaxSilentDuration time.Duration
}

// DefaultHealthConfig returns sensible defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Enabled:           true,
		CheckInterval:      30 * time.Second,
		MaxSilentDuration: 5 * time.Minute,
	}
}

// StartHealthMonitor runs until ctx is cancelled.
func (w *WhatsApp) StartHealthMonitor(ctx context.Context, cfg HealthConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.MaxSilentDuration <= 0 {
		cfg.MaxSilentDuration = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(cfg.CheckInterval)
		defer ticker.Stop()
		lastCheck := time.Now()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if w.getState() != StateConnected {
					continue
				}
				if w.client == nil || w.client.IsConnected() {
					lastCheck = time.Now()
					continue
				}
				if time.Since(lastCheck) > cfg.MaxSilentDuration {
					w.logger.Warn("whatsapp: client reports disconnected during health check, forcing reconnect")
					w.setState(StateReconnecting)
					w.connected.Store(false)
					go w.attemptReconnect()
				}
			}
		}
	}()
}
