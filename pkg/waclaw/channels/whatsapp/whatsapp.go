// Package whatsapp implements the WhatsApp Web channel: a QR-login,
// whatsmeow-backed client that turns inbound WhatsApp messages into
// reply.Message values for the core engine and dispatches the engine's
// reply.ReplyPayload values back out as text and media messages.
//
// No Node.js, no Baileys — whatsmeow speaks the WhatsApp Web protocol
// natively from Go.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for the session store.

	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// Config holds WhatsApp channel configuration.
type Config struct {
	// SessionDir is the directory for session persistence (SQLite).
	// Ignored if DatabasePath is set.
	SessionDir string

	// DatabasePath is the path to the SQLite database file for session
	// storage. If empty, defaults to SessionDir/whatsapp.db.
	DatabasePath string

	// RespondToGroups enables dispatching replies in group chats.
	RespondToGroups bool

	// RespondToDMs enables dispatching replies in direct messages.
	RespondToDMs bool

	// AutoRead marks incoming messages as read.
	AutoRead bool

	// MediaDir is the directory downloaded inbound media is written to
	// before being handed to the engine as a Message.MediaPaths entry.
	MediaDir string

	// MaxMediaSizeMB caps inbound media download size; 0 disables the cap.
	MaxMediaSizeMB int

	// Reconnect configures the backoff policy (component J) used instead
	// of whatsmeow's own constant-factor retry loop.
	Reconnect reply.ReconnectOptions

	// EchoSuppression selects the same-phone-mode echo predicate.
	EchoSuppression reply.EchoSuppression
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionDir:      "./sessions/whatsapp",
		RespondToGroups: false,
		RespondToDMs:    true,
		AutoRead:        true,
		MediaDir:        "./data/media",
		MaxMediaSizeMB:  16,
		Reconnect:       reply.DefaultReconnectOptions(),
		EchoSuppression: reply.EchoSuppressionStripped,
	}
}

// QREvent represents a QR code event sent to observers — typically a
// setup-time CLI or web UI waiting for the user to scan a code.
type QREvent struct {
	// Type is "code", "success", "timeout", or "error".
	Type string
	// Code is the raw QR code string (only for Type == "code").
	Code string
	// Message is a human-readable description.
	Message string
}

// ConnectionState represents the current connection state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateWaitingQR    ConnectionState = "waiting_qr"
	StateLoggingOut   ConnectionState = "logging_out"
)

// WhatsApp is the channel adapter: it owns the whatsmeow client and the
// glue between its events and the core reply engine.
type WhatsApp struct {
	cfg    Config
	engine *reply.Engine
	logger *slog.Logger

	client *whatsmeow.Client

	connected         atomic.Bool
	state             atomic.Value // ConnectionState
	reconnectAttempts atomic.Int32
	reconnectGuard    atomic.Bool

	qrObservers   []chan QREvent
	qrObserversMu sync.Mutex

	// lastSent tracks, per chat JID, the most recently dispatched text —
	// consulted by the echo-suppression predicate (reply.IsEcho).
	lastSent   map[string]string
	lastSentMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a WhatsApp channel bound to engine. The engine's session
// store and command queue are shared with any other channel running in
// the same process.
func New(cfg Config, engine *reply.Engine, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WhatsApp{
		cfg:      cfg,
		engine:   engine,
		logger:   logger.With("component", "whatsapp"),
		lastSent: make(map[string]string),
	}
	w.setState(StateDisconnected)
	return w
}

func (w *WhatsApp) getState() ConnectionState {
	if v := w.state.Load(); v != nil {
		return v.(ConnectionState)
	}
	return StateDisconnected
}

func (w *WhatsApp) setState(s ConnectionState) { w.state.Store(s) }

// GetState returns the current connection state.
func (w *WhatsApp) GetState() ConnectionState { return w.getState() }

// SubscribeQR registers a channel to receive QR events during login.
// Returns an unsubscribe function.
func (w *WhatsApp) SubscribeQR() (chan QREvent, func()) {
	ch := make(chan QREvent, 8)
	w.qrObserversMu.Lock()
	w.qrObservers = append(w.qrObservers, ch)
	w.qrObserversMu.Unlock()

	return ch, func() {
		w.qrObserversMu.Lock()
		defer w.qrObserversMu.Unlock()
		for i, obs := range w.qrObservers {
			if obs == ch {
				w.qrObservers = append(w.qrObservers[:i], w.qrObservers[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

func (w *WhatsApp) notifyQR(evt QREvent) {
	w.qrObserversMu.Lock()
	defer w.qrObserversMu.Unlock()
	for _, ch := range w.qrObservers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Connect opens the whatsmeow client. If no device is linked yet, QR
// login runs in the background and QR codes stream to SubscribeQR
// observers; Connect itself returns immediately either way.
func (w *WhatsApp) Connect(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.setState(StateConnecting)

	dbPath := w.cfg.DatabasePath
	if dbPath == "" {
		dbPath = w.cfg.SessionDir + "/whatsapp.db"
	}

	container, err := sqlstore.New(w.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", dbPath),
		waLog.Noop)
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("whatsapp: creating session store: %w", err)
	}

	device, err := w.getDevice(w.ctx, container)
	if err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("whatsapp: getting device: %w", err)
	}

	store.SetOSInfo("waclaw", [3]uint32{1, 0, 0})

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(w.handleEvent)
	w.client.EnableAutoReconnect = false // component J drives reconnection instead.

	if w.client.Store.ID == nil {
		w.setState(StateWaitingQR)
		w.logger.Info("whatsapp: no existing session, starting QR login")
		go func() {
			if err := w.loginWithQR(w.ctx); err != nil {
				w.logger.Warn("whatsapp: QR login did not complete", "err", err)
			}
		}()
		return nil
	}

	if err := w.client.Connect(); err != nil {
		w.setState(StateDisconnected)
		return fmt.Errorf("whatsapp: connecting: %w", err)
	}
	w.connected.Store(true)
	w.logger.Info("whatsapp: connected with existing session", "jid", w.clientJID())
	return nil
}

// Disconnect closes the connection without clearing the linked session.
func (w *WhatsApp) Disconnect() {
	w.setState(StateDisconnected)
	w.connected.Store(false)
	if w.cancel != nil {
		w.cancel()
	}
	if w.client != nil {
		w.client.Disconnect()
	}
	w.logger.Info("whatsapp: disconnected")
}

// Logout disconnects and clears the linked device, requiring a fresh QR
// scan on the next Connect.
func (w *WhatsApp) Logout(ctx context.Context) error {
	if w.client == nil {
		return nil
	}
	w.setState(StateLoggingOut)
	w.connected.Store(false)
	if err := w.client.Logout(ctx); err != nil {
		w.client.Disconnect()
		return fmt.Errorf("whatsapp: logout: %w", err)
	}
	w.setState(StateDisconnected)
	return nil
}

func (w *WhatsApp) getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

func (w *WhatsApp) loginWithQR(ctx context.Context) error {
	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("getting QR channel: %w", err)
	}
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("connecting for QR: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.setState(StateDisconnected)
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return fmt.Errorf("QR channel closed unexpectedly")
			}
			switch evt.Event {
			case "code":
				w.setState(StateWaitingQR)
				w.notifyQR(QREvent{Type: "code", Code: evt.Code, Message: "Scan this code with WhatsApp to link the device."})
			case "success":
				w.connected.Store(true)
				w.reconnectAttempts.Store(0)
				w.setState(StateConnected)
				w.notifyQR(QREvent{Type: "success", Message: "WhatsApp linked successfully."})
				return nil
			case "timeout":
				w.setState(StateDisconnected)
				w.notifyQR(QREvent{Type: "timeout", Message: "QR code expired."})
				return fmt.Errorf("QR code timeout")
			default:
				if evt.Error != nil {
					w.setState(StateDisconnected)
					w.notifyQR(QREvent{Type: "error", Message: evt.Error.Error()})
					return evt.Error
				}
			}
		}
	}
}

// attemptReconnect retries the connection using component J's backoff
// policy, in place of whatsmeow's own constant-factor retry loop.
func (w *WhatsApp) attemptReconnect() {
	if !w.reconnectGuard.CompareAndSwap(false, true) {
		return
	}
	defer w.reconnectGuard.Store(false)

	w.setState(StateReconnecting)

	for {
		if w.ctx.Err() != nil {
			return
		}
		attempt := int(w.reconnectAttempts.Add(1))
		delayMs, giveUp := reply.NextDelay(attempt, w.cfg.Reconnect)
		if giveUp {
			w.logger.Error("whatsapp: giving up reconnecting", "attempts", attempt)
			w.setState(StateDisconnected)
			return
		}

		select {
		case <-time.After(time.Duration(delayMs) * time.Millisecond):
		case <-w.ctx.Done():
			return
		}

		if w.client.IsConnected() {
			w.client.Disconnect()
		}
		if err := w.client.Connect(); err != nil {
			w.logger.Warn("whatsapp: reconnect attempt failed", "attempt", attempt, "err", err)
			continue
		}
		return // Connected event updates state and resets the attempt counter.
	}
}

func (w *WhatsApp) clientJID() string {
	if w.client != nil && w.client.Store.ID != nil {
		return w.client.Store.ID.String()
	}
	return ""
}

// Dispatch sends the engine's payloads back to the chat identified by
// jid, recording the last text sent for echo suppression.
func (w *WhatsApp) Dispatch(ctx context.Context, to string, payloads []reply.ReplyPayload) error {
	jid, err := parseJID(to)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid JID %q: %w", to, err)
	}

	for _, p := range payloads {
		if p.Text != "" {
			if _, err := w.client.SendMessage(ctx, jid, buildTextMessage(p.Text)); err != nil {
				return fmt.Errorf("whatsapp: sending text: %w", err)
			}
			w.recordSent(jid.String(), p.Text)
		}
		for _, ref := range p.MediaURLs {
			waMsg, err := w.buildMediaMessage(ctx, ref)
			if err != nil {
				w.logger.Warn("whatsapp: failed to build media message, skipping", "ref", ref, "err", err)
				continue
			}
			if _, err := w.client.SendMessage(ctx, jid, waMsg); err != nil {
				return fmt.Errorf("whatsapp: sending media: %w", err)
			}
		}
	}
	return nil
}

func (w *WhatsApp) recordSent(chatJID, text string) {
	w.lastSentMu.Lock()
	defer w.lastSentMu.Unlock()
	w.lastSent[chatJID] = text
}

func (w *WhatsApp) lastSentTo(chatJID string) string {
	w.lastSentMu.Lock()
	defer w.lastSentMu.Unlock()
	return w.lastSent[chatJID]
}

// parseJID converts a bare phone number or full JID string into a
// types.JID. Accepts "5511999999999", "5511999999999@s.whatsapp.net",
// and group JIDs like "123456789-1234@g.us".
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
