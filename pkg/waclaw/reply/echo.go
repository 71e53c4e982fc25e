package reply

import "strings"

// IsEcho reports whether incoming looks like this process's own
// recently-sent text being echoed back by a same-phone-mode channel
// session (the WhatsApp Web client's own outbound messages arrive back
// as ordinary inbound events because the linked device and the sender
// are the same account). lastSent is the most recent outbound text this
// process sent into the same chat; an empty lastSent means nothing has
// been sent yet, so nothing can be an echo.
func IsEcho(mode EchoSuppression, lastSent, incoming string) bool {
	if lastSent == "" {
		return false
	}
	switch mode {
	case EchoSuppressionRaw:
		return incoming == lastSent
	case EchoSuppressionPrefixed:
		return strings.HasPrefix(incoming, lastSent) || strings.HasPrefix(lastSent, incoming)
	default: // EchoSuppressionStripped and the unset default.
		return normalizeForEcho(incoming) == normalizeForEcho(lastSent)
	}
}

func normalizeForEcho(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
