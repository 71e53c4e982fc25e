package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/waclaw/pkg/waclaw/channels"
	"github.com/jholhewres/waclaw/pkg/waclaw/channels/telephony"
	"github.com/jholhewres/waclaw/pkg/waclaw/channels/whatsapp"
	"github.com/jholhewres/waclaw/pkg/waclaw/config"
	"github.com/jholhewres/waclaw/pkg/waclaw/ops"
	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// newServeCmd builds the `waclaw serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay daemon",
		Long: `Start waclaw as a long-running daemon: connects the configured
channels (WhatsApp Web, telephony), runs the reply engine against inbound
messages, and drives the heartbeat scheduler.

Examples:
  waclaw serve
  waclaw serve --config ./config.yaml`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	doc, err := config.Load(configPath)
	if err != nil {
		fmt.Println()
		fmt.Println("No usable configuration found.")
		fmt.Println("Run 'waclaw config init' to create one interactively.")
		fmt.Println()
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := reply.NewSessionStore(doc.Inbound.Reply.Session.StorePath, logger)
	queue := reply.NewCommandQueue()
	engine := reply.NewEngine(doc.ReplyConfig(), store, queue, logger)

	alerts, err := ops.NewAlertSink(doc.Ops.DiscordWebhookURL, logger)
	if err != nil {
		logger.Warn("ops alert sink disabled", "err", err)
	}

	var wa *whatsapp.WhatsApp
	var tel *telephony.Telephony

	if doc.WhatsApp.SessionDir != "" {
		waCfg := whatsapp.DefaultConfig()
		waCfg.SessionDir = doc.WhatsApp.SessionDir
		waCfg.DatabasePath = doc.WhatsApp.DatabasePath
		waCfg.RespondToGroups = doc.WhatsApp.RespondToGroups
		waCfg.RespondToDMs = doc.WhatsApp.RespondToDMs
		waCfg.AutoRead = doc.WhatsApp.AutoRead
		waCfg.MediaDir = doc.WhatsApp.MediaDir
		waCfg.MaxMediaSizeMB = doc.WhatsApp.MaxMediaSizeMB
		waCfg.Reconnect = doc.WhatsApp.Reconnect.ToOptions()
		waCfg.EchoSuppression = doc.Inbound.EchoSuppression

		wa = whatsapp.New(waCfg, engine, logger)
		if err := wa.Connect(ctx); err != nil {
			logger.Error("whatsapp connect failed", "err", err)
			if alerts != nil {
				alerts.ProviderTransportError("whatsapp", err)
			}
		} else {
			wa.StartHealthMonitor(ctx, whatsapp.DefaultHealthConfig())
		}
	}

	if doc.Telephony.Address != "" || doc.Telephony.PollIntervalSeconds > 0 {
		telCfg := telephony.DefaultConfig()
		if doc.Telephony.WebhookPath != "" {
			telCfg.WebhookPath = doc.Telephony.WebhookPath
		}
		telCfg.Address = doc.Telephony.Address
		telCfg.BaseURL = doc.Telephony.BaseURL
		if doc.Telephony.SendPath != "" {
			telCfg.SendPath = doc.Telephony.SendPath
		}
		if doc.Telephony.PollPath != "" {
			telCfg.PollPath = doc.Telephony.PollPath
		}
		telCfg.PollIntervalSeconds = doc.Telephony.PollIntervalSeconds
		telCfg.AuthToken = config.ResolveSecret(doc.Secrets.KeyringService, doc.Telephony.AuthTokenEnv)

		tel = telephony.New(telCfg, engine, logger)
		if err := tel.Start(ctx); err != nil {
			logger.Error("telephony start failed", "err", err)
			if alerts != nil {
				alerts.ProviderTransportError("telephony", err)
			}
		}
	}

	heartbeat := reply.NewHeartbeat(resolveHeartbeatConfig(doc), reply.HeartbeatDeps{
		Store: store,
		Queue: queue,
		Dispatch: func(c context.Context, sessionKey, body string) (reply.Result, error) {
			return engine.ReplyHeartbeat(c, sessionKey, body), nil
		},
		Deliver: func(sessionKey string, payloads []reply.ReplyPayload) {
			deliverHeartbeat(ctx, sessionKey, payloads, wa, tel, logger)
		},
		Logger: logger,
	})
	if err := heartbeat.Start(ctx); err != nil {
		logger.Error("heartbeat start failed", "err", err)
	}

	logger.Info("waclaw running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		heartbeat.Stop()
		cancel()
		if wa != nil {
			wa.Disconnect()
		}
		if err := engine.Close(); err != nil {
			logger.Warn("engine shutdown", "err", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// resolveHeartbeatConfig fills in the heartbeat: block's cron cadence and
// idle threshold from the reply config's own pacing keys when the
// heartbeat: block leaves them unset, per spec §4.I ("heartbeatIdleMinutes,
// or idleMinutes if unset") and §6 (inbound.reply.heartbeatMinutes).
func resolveHeartbeatConfig(doc *config.Document) reply.HeartbeatConfig {
	hb := doc.Heartbeat
	if hb.CronSpec == "" {
		if doc.Inbound.Reply.HeartbeatMinutes > 0 {
			hb.CronSpec = fmt.Sprintf("@every %dm", doc.Inbound.Reply.HeartbeatMinutes)
		} else {
			hb.CronSpec = reply.DefaultHeartbeatConfig().CronSpec
		}
	}
	if hb.IdleMinutes <= 0 {
		hb.IdleMinutes = doc.Inbound.Reply.Session.HeartbeatIdleMinutes
	}
	if hb.IdleMinutes <= 0 {
		hb.IdleMinutes = doc.Inbound.Reply.Session.IdleMinutes
	}
	if hb.Body == "" {
		hb.Body = reply.DefaultHeartbeatConfig().Body
	}
	return hb
}

// deliverHeartbeat routes a heartbeat probe's payloads to whichever channel
// owns sessionKey, distinguishing a WhatsApp JID from a telephony address by
// the JID's "@" suffix — the two channels never share a sender namespace.
// Routed through the channels.Dispatcher interface rather than the two
// concrete adapter types, so adding a third channel later does not touch
// this dispatch rule beyond one more case.
func deliverHeartbeat(ctx context.Context, sessionKey string, payloads []reply.ReplyPayload, wa *whatsapp.WhatsApp, tel *telephony.Telephony, logger *slog.Logger) {
	var target channels.Dispatcher
	switch {
	case strings.Contains(sessionKey, "@") && wa != nil:
		target = wa
	case tel != nil:
		target = tel
	default:
		return
	}
	if err := target.Dispatch(ctx, sessionKey, payloads); err != nil {
		logger.Error("heartbeat delivery failed", "session", sessionKey, "err", err)
	}
}
