// Package ops forwards the two error-taxonomy kinds that have no
// user-visible payload of their own — SessionStoreWriteFailure and
// ProviderTransportError — to an on-call Discord channel, in addition to
// the structured log line the core already emits. Repurposed from the
// teacher's full bwmarrin/discordgo chat channel into a narrow one-way
// alert sink: the core has no administrative UI of its own.
package ops

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// AlertSink posts error-taxonomy events to a Discord webhook. A sink with
// an empty WebhookURL is a no-op — ops alerting is optional.
type AlertSink struct {
	webhookID    string
	webhookToken string
	enabled      bool
	session      *discordgo.Session
	logger       *slog.Logger
}

// NewAlertSink parses webhookURL (the standard
// https://discord.com/api/webhooks/<id>/<token> form) and returns a sink.
// An empty URL disables the sink outright — callers still call Alert
// unconditionally and the sink swallows it.
func NewAlertSink(webhookURL string, logger *slog.Logger) (*AlertSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ops_alert_sink")

	if webhookURL == "" {
		return &AlertSink{logger: logger}, nil
	}

	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// A bare session with no token is sufficient for webhook execution —
	// WebhookExecute authenticates via the webhook token, not a bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("ops: create discord session: %w", err)
	}

	return &AlertSink{
		webhookID:    id,
		webhookToken: token,
		enabled:      true,
		session:      session,
		logger:       logger,
	}, nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("ops: invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 {
		return "", "", fmt.Errorf("ops: malformed webhook url %q", raw)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// Alert posts one event if the sink is enabled. It never returns an
// error to the caller — delivery failures are logged, since an alert
// sink going down must not itself become a cascading failure.
func (s *AlertSink) Alert(kind reply.ErrorKind, detail string) {
	s.logger.Error("ops alert", "kind", kind, "detail", detail)

	if !s.enabled {
		return
	}

	content := fmt.Sprintf("**%s** at %s\n%s", kind, time.Now().UTC().Format(time.RFC3339), detail)
	_, err := s.session.WebhookExecute(s.webhookID, s.webhookToken, false, &discordgo.WebhookParams{
		Content: content,
	})
	if err != nil {
		s.logger.Error("failed to deliver ops alert", "err", err)
	}
}

// SessionStoreWriteFailure is a convenience wrapper for the matching
// error-taxonomy kind.
func (s *AlertSink) SessionStoreWriteFailure(err error) {
	s.Alert(reply.ErrorSessionStoreWriteFail, err.Error())
}

// ProviderTransportError is a convenience wrapper for the matching
// error-taxonomy kind.
func (s *AlertSink) ProviderTransportError(provider string, err error) {
	s.Alert(reply.ErrorProviderTransport, fmt.Sprintf("%s: %v", provider, err))
}
