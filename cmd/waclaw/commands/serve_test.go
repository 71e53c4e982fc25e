package commands

import (
	"testing"

	"github.com/jholhewres/waclaw/pkg/waclaw/config"
	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

func TestResolveHeartbeatConfig_FallsBackToSessionIdleMinutes(t *testing.T) {
	doc := &config.Document{
		Inbound: reply.InboundConfig{
			Reply: reply.ReplyConfig{
				Session: reply.SessionConfig{IdleMinutes: 30, HeartbeatIdleMinutes: 0},
			},
		},
		Heartbeat: reply.HeartbeatConfig{Enabled: true},
	}
	hb := resolveHeartbeatConfig(doc)
	if hb.IdleMinutes != 30 {
		t.Errorf("IdleMinutes = %d, want 30 (session.idleMinutes fallback)", hb.IdleMinutes)
	}
}

func TestResolveHeartbeatConfig_PrefersHeartbeatIdleMinutes(t *testing.T) {
	doc := &config.Document{
		Inbound: reply.InboundConfig{
			Reply: reply.ReplyConfig{
				Session: reply.SessionConfig{IdleMinutes: 30, HeartbeatIdleMinutes: 90},
			},
		},
		Heartbeat: reply.HeartbeatConfig{Enabled: true},
	}
	hb := resolveHeartbeatConfig(doc)
	if hb.IdleMinutes != 90 {
		t.Errorf("IdleMinutes = %d, want 90 (session.heartbeatIdleMinutes)", hb.IdleMinutes)
	}
}

func TestResolveHeartbeatConfig_ExplicitHeartbeatBlockWins(t *testing.T) {
	doc := &config.Document{
		Inbound: reply.InboundConfig{
			Reply: reply.ReplyConfig{
				Session: reply.SessionConfig{IdleMinutes: 30, HeartbeatIdleMinutes: 90},
			},
		},
		Heartbeat: reply.HeartbeatConfig{Enabled: true, IdleMinutes: 10, CronSpec: "@every 5m"},
	}
	hb := resolveHeartbeatConfig(doc)
	if hb.IdleMinutes != 10 {
		t.Errorf("IdleMinutes = %d, want 10 (explicit heartbeat.idleMinutes wins)", hb.IdleMinutes)
	}
	if hb.CronSpec != "@every 5m" {
		t.Errorf("CronSpec = %q, want the explicit heartbeat.cronSpec unchanged", hb.CronSpec)
	}
}

func TestResolveHeartbeatConfig_DerivesCronSpecFromHeartbeatMinutes(t *testing.T) {
	doc := &config.Document{
		Inbound: reply.InboundConfig{
			Reply: reply.ReplyConfig{HeartbeatMinutes: 15},
		},
		Heartbeat: reply.HeartbeatConfig{Enabled: true},
	}
	hb := resolveHeartbeatConfig(doc)
	if hb.CronSpec != "@every 15m" {
		t.Errorf("CronSpec = %q, want @every 15m derived from inbound.reply.heartbeatMinutes", hb.CronSpec)
	}
}
