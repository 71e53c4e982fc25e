package reply

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// HeartbeatConfig configures the periodic per-session probe (spec §4.I).
type HeartbeatConfig struct {
	Enabled bool `yaml:"enabled"`

	// CronSpec is a robfig/cron schedule, used as given. The serve command
	// derives an "@every" entry from inbound.reply.heartbeatMinutes when it
	// is empty; DefaultHeartbeatConfig uses "@every 30m".
	CronSpec string `yaml:"cronSpec"`

	// IdleMinutes is the age threshold (on Session.UpdatedAt) a session
	// must clear before it is probed. The scheduler uses it as given (zero
	// probes every session); the serve command fills it from the session's
	// heartbeatIdleMinutes, then idleMinutes, when it is zero.
	IdleMinutes int `yaml:"idleMinutes"`

	// Body is the synthetic message fed through the reply engine for
	// each probed session.
	Body string `yaml:"body"`
}

// DefaultHeartbeatConfig mirrors the teacher's defaults, adapted to a cron
// spec instead of a bare interval.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Enabled:  false,
		CronSpec: "@every 30m",
		Body:     "HEARTBEAT /think:high",
	}
}

// HeartbeatDeps wires the scheduler to the session store and the reply
// engine without introducing an import cycle on Engine itself.
type HeartbeatDeps struct {
	Store   *SessionStore
	Queue   *CommandQueue
	Dispatch func(ctx context.Context, sessionKey, body string) (Result, error)
	Deliver func(sessionKey string, payloads []ReplyPayload)
	Logger  *slog.Logger
}

// Heartbeat drives a cron-scheduled probe over every session whose
// UpdatedAt age exceeds IdleMinutes. A tick is skipped outright (not
// queued) whenever the command queue already has callers ahead, so a busy
// agent is never pushed further behind by background chatter. Heartbeat
// ticks never call SessionStore.Touch — a probe must not keep an idle
// session artificially alive (testable property 4).
type Heartbeat struct {
	cfg    HeartbeatConfig
	deps   HeartbeatDeps
	logger *slog.Logger

	mu      sync.Mutex
	cronJob *cron.Cron
}

// NewHeartbeat creates a scheduler; call Start to begin ticking.
func NewHeartbeat(cfg HeartbeatConfig, deps HeartbeatDeps) *Heartbeat {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "heartbeat"),
	}
}

// Start registers the cron schedule and begins ticking. Stop must be
// called to release the underlying cron goroutine.
func (h *Heartbeat) Start(ctx context.Context) error {
	if !h.cfg.Enabled {
		h.logger.Info("heartbeat disabled")
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c := cron.New()
	_, err := c.AddFunc(h.cfg.CronSpec, func() { h.tick(ctx) })
	if err != nil {
		return err
	}
	c.Start()
	h.cronJob = c

	h.logger.Info("heartbeat started", "cron", h.cfg.CronSpec, "idleMinutes", h.cfg.IdleMinutes)
	return nil
}

// Stop halts the cron schedule and waits for any in-flight tick to finish.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cronJob != nil {
		<-h.cronJob.Stop().Done()
		h.cronJob = nil
	}
}

func (h *Heartbeat) tick(ctx context.Context) {
	if h.deps.Store == nil {
		return
	}
	now := time.Now()
	for key, session := range h.deps.Store.Snapshot() {
		if now.Sub(session.UpdatedAt) <= time.Duration(h.cfg.IdleMinutes)*time.Minute {
			continue
		}
		h.tickSession(ctx, key)
	}
}

func (h *Heartbeat) tickSession(ctx context.Context, sessionKey string) {
	if h.deps.Queue != nil && h.deps.Queue.Ahead() > 0 {
		h.logger.Debug("heartbeat: queue busy, skipping tick", "session", sessionKey)
		return
	}

	// Dispatch is wired to Engine.ReplyHeartbeat, which runs the command
	// directly rather than enqueuing it again — this Enqueue call is the
	// only one in play for a heartbeat tick. Wrapping Dispatch in a
	// second, nested Enqueue on the same queue would deadlock: the outer
	// slot can't advance until Dispatch returns, and a second Enqueue
	// call from inside it would sit waiting behind itself.
	result, err := h.deps.Queue.Enqueue(ctx, func(c context.Context) (Result, error) {
		return h.deps.Dispatch(c, sessionKey, h.cfg.Body)
	}, nil)
	if err != nil {
		h.logger.Error("heartbeat probe failed", "session", sessionKey, "err", err)
		return
	}

	var deliverable []ReplyPayload
	for _, p := range result.Payloads {
		trimmed := strings.TrimSpace(p.Text)
		if trimmed == "" || trimmed == "HEARTBEAT_OK" {
			h.logger.Debug("heartbeat: suppressing HEARTBEAT_OK", "session", sessionKey)
			continue
		}
		deliverable = append(deliverable, p)
	}

	if len(deliverable) == 0 {
		return
	}
	if h.deps.Deliver != nil {
		h.deps.Deliver(sessionKey, deliverable)
	}
}
