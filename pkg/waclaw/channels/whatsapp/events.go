package whatsapp

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"

	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// handleEvent is whatsmeow's single event dispatcher.
func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessageEvt(evt)
	case *events.Connected:
		w.handleConnected(evt)
	case *events.Disconnected:
		w.handleDisconnected(evt)
	case *events.LoggedOut:
		w.handleLoggedOut(evt)
	case *events.StreamReplaced:
		w.setState(StateDisconnected)
		w.connected.Store(false)
		w.logger.Error("whatsapp: stream replaced, another device took over")
	case *events.PairSuccess:
		w.logger.Info("whatsapp: device paired", "jid", evt.ID)
	}
}

func (w *WhatsApp) handleConnected(_ *events.Connected) {
	w.setState(StateConnected)
	w.connected.Store(true)
	w.reconnectAttempts.Store(0)
	w.logger.Info("whatsapp: connected", "jid", w.clientJID())
}

func (w *WhatsApp) handleDisconnected(_ *events.Disconnected) {
	wasConnected := w.connected.Load()
	w.setState(StateDisconnected)
	w.connected.Store(false)
	w.logger.Warn("whatsapp: disconnected", "was_connected", wasConnected)
	if wasConnected && w.ctx.Err() == nil {
		go w.attemptReconnect()
	}
}

func (w *WhatsApp) handleLoggedOut(evt *events.LoggedOut) {
	w.setState(StateDisconnected)
	w.connected.Store(false)
	w.logger.Error("whatsapp: logged out, a fresh QR scan is required", "reason", evt.Reason.String())
	go func() {
		if err := w.loginWithQR(w.ctx); err != nil {
			w.logger.Warn("whatsapp: re-login after logout failed", "err", err)
		}
	}()
}

// handleMessageEvt converts one whatsmeow message event into a
// reply.Message, applies same-phone-mode echo suppression, and hands it
// to the core engine.
func (w *WhatsApp) handleMessageEvt(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}
	if evt.Info.Chat.Server == "broadcast" {
		return
	}
	if evt.Info.IsGroup && !w.cfg.RespondToGroups {
		return
	}
	if !evt.Info.IsGroup && !w.cfg.RespondToDMs {
		return
	}

	from := evt.Info.Sender.String()
	chatJID := evt.Info.Chat.String()

	body, mediaPaths := w.extractContent(evt.Message, string(evt.Info.ID))

	if reply.IsEcho(w.cfg.EchoSuppression, w.lastSentTo(chatJID), body) {
		w.logger.Debug("whatsapp: suppressing echoed inbound message", "chat", chatJID)
		return
	}

	if w.cfg.AutoRead {
		go func() {
			_ = w.client.MarkRead(w.ctx, []types.MessageID{evt.Info.ID}, time.Now(), evt.Info.Chat, evt.Info.Sender)
		}()
	}

	msg := reply.Message{
		From:       from,
		To:         chatJID,
		Body:       body,
		MessageID:  string(evt.Info.ID),
		MediaPaths: mediaPaths,
		ReceivedAt: evt.Info.Timestamp,
	}

	go w.handleInbound(chatJID, msg)
}

func (w *WhatsApp) handleInbound(chatJID string, msg reply.Message) {
	res := w.engine.Reply(w.ctx, msg)
	if len(res.Payloads) == 0 {
		return
	}
	if err := w.Dispatch(w.ctx, chatJID, res.Payloads); err != nil {
		w.logger.Error("whatsapp: dispatch failed", "err", err)
	}
}

// extractContent pulls the text body and, for a media message, downloads
// the attachment to cfg.MediaDir and returns its local path.
func (w *WhatsApp) extractContent(waMsg *waE2E.Message, messageID string) (body string, mediaPaths []string) {
	if waMsg == nil {
		return "", nil
	}

	if waMsg.Conversation != nil {
		return waMsg.GetConversation(), nil
	}
	if ext := waMsg.ExtendedTextMessage; ext != nil {
		return ext.GetText(), nil
	}

	var downloadable interface {
		GetMimetype() string
	}
	caption := ""

	switch {
	case waMsg.ImageMessage != nil:
		downloadable = waMsg.ImageMessage
		caption = waMsg.ImageMessage.GetCaption()
	case waMsg.AudioMessage != nil:
		downloadable = waMsg.AudioMessage
		caption = "[audio]"
	case waMsg.VideoMessage != nil:
		downloadable = waMsg.VideoMessage
		caption = waMsg.VideoMessage.GetCaption()
	case waMsg.DocumentMessage != nil:
		downloadable = waMsg.DocumentMessage
		caption = waMsg.DocumentMessage.GetCaption()
	default:
		return "[unsupported message type]", nil
	}

	path, err := w.downloadMedia(waMsg, downloadable.GetMimetype(), messageID)
	if err != nil {
		w.logger.Warn("whatsapp: failed to download inbound media", "err", err)
		return caption, nil
	}
	return caption, []string{path}
}

// downloadMedia downloads whichever media part waMsg carries. DownloadAny
// resolves the right decryption parameters (URL, MediaKey, SHA256 pair)
// from the message itself, so the caller need not switch on type here.
func (w *WhatsApp) downloadMedia(waMsg *waE2E.Message, mimeType, messageID string) (string, error) {
	data, err := w.client.DownloadAny(w.ctx, waMsg)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if _, err := reply.ValidateMedia(data, mimeType, w.cfg.MaxMediaSizeMB); err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.cfg.MediaDir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir media dir: %w", err)
	}

	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	path := filepath.Join(w.cfg.MediaDir, messageID+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path, nil
}
