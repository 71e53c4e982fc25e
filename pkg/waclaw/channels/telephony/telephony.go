// Package telephony implements a generic cloud-telephony-provider channel:
// an inbound HTTP webhook handler plus a polling fallback loop, both
// normalising provider payloads into reply.Message and both driving the
// same reply.Engine as the WhatsApp Web channel. No concrete vendor SDK
// is wired in — the provider's webhook shape and send endpoint are
// configuration, not code, since no vendor SDK appeared in this design's
// reference material.
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// Config drives the telephony channel.
type Config struct {
	// WebhookPath is the HTTP path the provider POSTs inbound messages to.
	WebhookPath string
	// Address is the listen address for the webhook server, e.g. ":8086".
	Address string
	// BaseURL is the provider's API base URL used to send outbound replies.
	BaseURL string
	// SendPath is appended to BaseURL to form the outbound send endpoint.
	SendPath string
	// AuthToken is sent as a bearer token on outbound requests.
	AuthToken string
	// PollIntervalSeconds enables a polling fallback loop when > 0,
	// instead of (or alongside) the webhook handler.
	PollIntervalSeconds int
	// PollPath is appended to BaseURL to fetch queued inbound messages.
	PollPath string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WebhookPath: "/webhooks/telephony",
		Address:     ":8086",
		SendPath:    "/messages",
		PollPath:    "/messages/inbound",
	}
}

// inboundPayload is the normalised shape this channel expects a provider
// webhook or poll response to carry. Concrete providers differ in field
// names; a thin per-provider translator in front of this struct is the
// integration point this design leaves open.
type inboundPayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	MessageID string `json:"messageId"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

// outboundPayload is what gets POSTed to BaseURL+SendPath.
type outboundPayload struct {
	To        string   `json:"to"`
	From      string   `json:"from"`
	Text      string   `json:"text,omitempty"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

// Telephony is the channel adapter.
type Telephony struct {
	cfg    Config
	engine *reply.Engine
	logger *slog.Logger

	httpClient *http.Client
	server     *http.Server

	seenIDs map[string]time.Time // dedup window for polling
}

// New creates a Telephony channel bound to engine.
func New(cfg Config, engine *reply.Engine, logger *slog.Logger) *Telephony {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telephony{
		cfg:        cfg,
		engine:     engine,
		logger:     logger.With("component", "telephony"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		seenIDs:    make(map[string]time.Time),
	}
}

// Start runs the webhook server (if Address is set) and the polling
// fallback loop (if PollIntervalSeconds > 0), both until ctx is
// cancelled. Both run in background goroutines, so Start returns without
// waiting for the listener to bind (a listen error is logged, not
// returned); shutdown happens asynchronously on context cancellation.
func (t *Telephony) Start(ctx context.Context) error {
	if t.cfg.PollIntervalSeconds > 0 {
		go t.pollLoop(ctx)
	}

	if t.cfg.Address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.WebhookPath, t.handleWebhook)
	t.server = &http.Server{Addr: t.cfg.Address, Handler: mux}

	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.logger.Error("telephony webhook server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	t.logger.Info("telephony webhook listening", "address", t.cfg.Address, "path", t.cfg.WebhookPath)
	return nil
}

func (t *Telephony) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (t *Telephony) writeError(w http.ResponseWriter, msg string, status int) {
	t.writeJSON(w, status, map[string]string{"error": msg})
}

// handleWebhook implements POST <webhookPath>.
func (t *Telephony) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		t.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		t.writeError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.From == "" {
		t.writeError(w, "missing from", http.StatusBadRequest)
		return
	}

	t.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	go t.handleInbound(r.Context(), payload)
}

// pollLoop periodically fetches queued inbound messages from
// BaseURL+PollPath when the provider does not support webhooks.
func (t *Telephony) pollLoop(ctx context.Context) {
	interval := time.Duration(t.cfg.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				t.logger.Warn("telephony poll failed", "err", err)
			}
		}
	}
}

func (t *Telephony) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+t.cfg.PollPath, nil)
	if err != nil {
		return err
	}
	if t.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}

	var payloads []inboundPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return fmt.Errorf("poll: decode: %w", err)
	}

	now := time.Now()
	for _, p := range payloads {
		if p.MessageID != "" {
			if _, seen := t.seenIDs[p.MessageID]; seen {
				continue
			}
			t.seenIDs[p.MessageID] = now
		}
		t.handleInbound(ctx, p)
	}
	t.pruneSeen(now)
	return nil
}

// pruneSeen drops dedup entries older than an hour so the map does not
// grow unbounded across a long-running poll loop.
func (t *Telephony) pruneSeen(now time.Time) {
	for id, seenAt := range t.seenIDs {
		if now.Sub(seenAt) > time.Hour {
			delete(t.seenIDs, id)
		}
	}
}

func (t *Telephony) handleInbound(ctx context.Context, p inboundPayload) {
	msg := reply.Message{
		From:       p.From,
		To:         p.To,
		Body:       p.Body,
		MessageID:  p.MessageID,
		MediaPaths: p.MediaURLs,
		ReceivedAt: time.Now(),
	}

	res := t.engine.Reply(ctx, msg)
	if len(res.Payloads) == 0 {
		return
	}
	if err := t.Dispatch(ctx, p.From, res.Payloads); err != nil {
		t.logger.Error("telephony dispatch failed", "err", err)
	}
}

// Dispatch posts the engine's payloads to the provider's send endpoint,
// chunking outbound text at the telephony cap (component K) before
// each request.
func (t *Telephony) Dispatch(ctx context.Context, to string, payloads []reply.ReplyPayload) error {
	for _, p := range payloads {
		for _, chunk := range reply.Chunk(p.Text, reply.TelephonyMaxChars) {
			if err := t.send(ctx, to, chunk, nil); err != nil {
				return err
			}
		}
		if len(p.MediaURLs) > 0 {
			if err := t.send(ctx, to, "", p.MediaURLs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Telephony) send(ctx context.Context, to, text string, mediaURLs []string) error {
	body, err := json.Marshal(outboundPayload{To: to, Text: text, MediaURLs: mediaURLs})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+t.cfg.SendPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telephony: send returned status %d", resp.StatusCode)
	}
	return nil
}
