package reply

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// heartbeatEchoAgent is a test-only agent kind that shells out to
// /bin/sh -c "echo <body>" instead of a real agent CLI, so heartbeat
// dispatch can be exercised through the real command queue without a
// dependency on claude/codex/etc. being installed.
func init() {
	Registry = append(Registry, AgentSpec{
		Kind:      AgentKind("heartbeat-echo-test"),
		Matches:   func(argv []string) bool { return false },
		BuildArgs: func(ctx BuildContext) []string { return []string{"/bin/sh", "-c", "echo " + ctx.Body} },
		ParseOutput: func(raw string) AgentParseResult {
			return AgentParseResult{Texts: []string{strings.TrimSpace(raw)}}
		},
	})
	// argvEchoTest echoes its own argv[0] (the part a real agent would
	// build from cfg.Inbound.Reply.Command) so heartbeatCommand's override
	// can be observed directly rather than inferred from side effects.
	Registry = append(Registry, AgentSpec{
		Kind:      AgentKind("heartbeat-argv-echo-test"),
		Matches:   func(argv []string) bool { return false },
		BuildArgs: func(ctx BuildContext) []string { return []string{"/bin/sh", "-c", "echo " + ctx.Argv[0]} },
		ParseOutput: func(raw string) AgentParseResult {
			return AgentParseResult{Texts: []string{strings.TrimSpace(raw)}}
		},
	})
}

// newHeartbeatTestEngine wires a real Engine in command mode against the
// echo agent above, with an allow-list that deliberately excludes every
// session key used below — admission must never gate a heartbeat probe.
func newHeartbeatTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := Config{
		Inbound: InboundConfig{
			AllowFrom: []string{"+not-a-heartbeat-target"},
			Reply: ReplyConfig{
				Mode:    ReplyModeCommand,
				Command: "heartbeat-echo-test",
				Agent:   AgentConfig{Kind: AgentKind("heartbeat-echo-test")},
			},
		},
	}
	store := NewSessionStore(filepath.Join(t.TempDir(), "sessions.json"), nil)
	queue := NewCommandQueue()
	return NewEngine(cfg, store, queue, nil)
}

func newTestHeartbeat(e *Engine, body string, deliver func(string, []ReplyPayload)) *Heartbeat {
	return NewHeartbeat(HeartbeatConfig{Enabled: true, Body: body, IdleMinutes: 30}, HeartbeatDeps{
		Store: e.Store,
		Queue: e.Queue,
		Dispatch: func(c context.Context, sessionKey, body string) (Result, error) {
			return e.ReplyHeartbeat(c, sessionKey, body), nil
		},
		Deliver: deliver,
	})
}

// S6: a heartbeat tick dispatches through the same command queue a normal
// reply uses. Engine.ReplyHeartbeat must not enqueue a second time on top
// of tickSession's own Enqueue call, or the tick hangs forever.
func TestHeartbeat_TickDoesNotDeadlock(t *testing.T) {
	e := newHeartbeatTestEngine(t)
	sessionKey := "alice"
	e.Store.Get(sessionKey, 0, false)

	var delivered []ReplyPayload
	h := newTestHeartbeat(e, "ping", func(_ string, payloads []ReplyPayload) { delivered = payloads })

	done := make(chan struct{})
	go func() {
		h.tickSession(context.Background(), sessionKey)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tickSession deadlocked: heartbeat dispatch never returned")
	}

	if len(delivered) != 1 || delivered[0].Text != "ping" {
		t.Fatalf("delivered = %v, want [{Text: ping}]", delivered)
	}
}

// Property 4 / S6: a heartbeat probe must never advance UpdatedAt, or an
// idle session would be kept artificially alive by its own probe.
func TestHeartbeat_NeverTouchesUpdatedAt(t *testing.T) {
	e := newHeartbeatTestEngine(t)
	sessionKey := "alice"
	session, _, _ := e.Store.Get(sessionKey, 0, false)
	before := session.UpdatedAt

	h := newTestHeartbeat(e, "ping", func(string, []ReplyPayload) {})
	h.tickSession(context.Background(), sessionKey)

	after, _, _ := e.Store.Get(sessionKey, 0, false)
	if !after.UpdatedAt.Equal(before) {
		t.Errorf("UpdatedAt changed from %v to %v; a heartbeat must never touch it", before, after.UpdatedAt)
	}
}

// A heartbeat probe targets a session the store already holds, not an
// inbound sender, so it must bypass admission entirely — otherwise a
// global-scope deployment (sessionKey == GlobalScopeKey) or any allowFrom
// list that doesn't happen to list the session key silently drops every
// heartbeat.
func TestHeartbeat_BypassesAdmission(t *testing.T) {
	e := newHeartbeatTestEngine(t)
	sessionKey := GlobalScopeKey
	e.Store.Get(sessionKey, 0, false)

	var delivered []ReplyPayload
	h := newTestHeartbeat(e, "ping", func(_ string, payloads []ReplyPayload) { delivered = payloads })
	h.tickSession(context.Background(), sessionKey)

	if len(delivered) != 1 || delivered[0].Text != "ping" {
		t.Fatalf("delivered = %v, want [{Text: ping}] despite the key failing normal admission", delivered)
	}
}

// S6: a HEARTBEAT_OK response is suppressed outright — nothing reaches Deliver.
func TestHeartbeat_SuppressesHeartbeatOK(t *testing.T) {
	e := newHeartbeatTestEngine(t)
	sessionKey := "alice"
	e.Store.Get(sessionKey, 0, false)

	delivered := false
	h := newTestHeartbeat(e, "HEARTBEAT_OK", func(string, []ReplyPayload) { delivered = true })
	h.tickSession(context.Background(), sessionKey)

	if delivered {
		t.Error("Deliver was called for a HEARTBEAT_OK response, want suppression")
	}
}

// inbound.reply.heartbeatCommand overrides the argv used for a heartbeat
// probe, leaving the session's normal command untouched.
func TestEngine_ReplyHeartbeatHonoursHeartbeatCommandOverride(t *testing.T) {
	cfg := Config{
		Inbound: InboundConfig{
			AllowFrom: []string{"*"},
			Reply: ReplyConfig{
				Mode:             ReplyModeCommand,
				Command:          "normal-command",
				HeartbeatCommand: []string{"heartbeat-only-command"},
				Agent:            AgentConfig{Kind: AgentKind("heartbeat-argv-echo-test")},
			},
		},
	}
	store := NewSessionStore(filepath.Join(t.TempDir(), "sessions.json"), nil)
	e := NewEngine(cfg, store, NewCommandQueue(), nil)

	res := e.ReplyHeartbeat(context.Background(), "alice", "ping")
	if len(res.Payloads) != 1 || res.Payloads[0].Text != "heartbeat-only-command" {
		t.Fatalf("Payloads = %v, want [{Text: heartbeat-only-command}]", res.Payloads)
	}

	if e.Config.Inbound.Reply.Command != "normal-command" {
		t.Errorf("e.Config.Inbound.Reply.Command = %q, want the original unchanged", e.Config.Inbound.Reply.Command)
	}
}

// tick only probes sessions whose UpdatedAt age clears IdleMinutes.
func TestHeartbeat_TickSkipsFreshSessions(t *testing.T) {
	e := newHeartbeatTestEngine(t)
	e.Store.Get("fresh", 0, false)

	delivered := false
	h := newTestHeartbeat(e, "ping", func(string, []ReplyPayload) { delivered = true })
	h.tick(context.Background())

	if delivered {
		t.Error("a freshly created session should not be probed before its idle window elapses")
	}
}

// tickSession must skip outright, not queue, when the command queue is
// already busy, so background heartbeat traffic never pushes a live user
// turn further behind.
func TestHeartbeat_SkipsTickWhenQueueBusy(t *testing.T) {
	e := newHeartbeatTestEngine(t)
	sessionKey := "alice"
	e.Store.Get(sessionKey, 0, false)

	release := make(chan struct{})
	go func() {
		_, _ = e.Queue.Enqueue(context.Background(), func(c context.Context) (Result, error) {
			<-release
			return Result{}, nil
		}, nil)
	}()
	time.Sleep(10 * time.Millisecond) // let the occupying caller acquire the slot

	delivered := false
	h := newTestHeartbeat(e, "ping", func(string, []ReplyPayload) { delivered = true })
	h.tickSession(context.Background(), sessionKey)
	close(release)

	if delivered {
		t.Error("tickSession should have skipped the tick while the queue was busy")
	}
}
