// Package channels defines the narrow interface every concrete channel
// adapter (WhatsApp Web, telephony) satisfies, so a caller that only needs
// to route a heartbeat probe's payloads back out does not need to know
// which adapter owns a given session key.
package channels

import (
	"context"

	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// Dispatcher is the one operation both pkg/waclaw/channels/whatsapp and
// pkg/waclaw/channels/telephony implement: deliver the reply engine's
// payloads for one turn back to a recipient on that channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, to string, payloads []reply.ReplyPayload) error
}
