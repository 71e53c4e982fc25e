// Package reply implements the auto-reply engine: the component that sits
// between inbound WhatsApp message arrival and outbound dispatch. It decides
// whether a message qualifies for a reply, resolves session state, invokes
// an external conversational agent as a child process, and produces the
// payloads a channel adapter should send back.
package reply

import "time"

// Message is an inbound message handed to the engine by a channel adapter.
// Immutable once received.
type Message struct {
	From       string
	To         string
	Body       string
	MessageID  string
	MediaPaths []string
	ReceivedAt time.Time
}

// ReplyPayload is one unit of outbound content produced by the engine.
// Payloads are emitted in order; a single turn may produce several.
type ReplyPayload struct {
	Text      string
	MediaURL  string
	MediaURLs []string
}

// ErrorKind enumerates the error taxonomy from the design (kinds, not
// names) so CommandReplyMeta can carry observability data without the core
// raising errors across its boundary.
type ErrorKind string

const (
	ErrorNone                  ErrorKind = ""
	ErrorAdmissionRefused      ErrorKind = "admission_refused"
	ErrorCommandTimeout        ErrorKind = "command_timeout"
	ErrorCommandNonZeroExit    ErrorKind = "command_nonzero_exit"
	ErrorCommandKilled         ErrorKind = "command_killed"
	ErrorAgentParseFailure     ErrorKind = "agent_parse_failure"
	ErrorTranscriptionFailure  ErrorKind = "transcription_failure"
	ErrorSessionStoreWriteFail ErrorKind = "session_store_write_failure"
	ErrorProviderTransport     ErrorKind = "provider_transport_error"
)

// AgentMeta carries agent-reported metadata parsed out of the raw output.
type AgentMeta struct {
	Model      string
	Provider   string
	StopReason string
	Usage      map[string]any
	Extra      map[string]any
}

// CommandReplyMeta describes how a turn was produced, for logging/metrics.
type CommandReplyMeta struct {
	DurationMs  int64
	QueuedMs    int64
	QueuedAhead int
	ExitCode    int
	Signal      string
	Killed      bool
	Error       ErrorKind
	AgentMeta   *AgentMeta
}

// Result is the full outcome of a call to Engine.Reply.
type Result struct {
	Payloads []ReplyPayload
	Meta     CommandReplyMeta
}

func textPayload(s string) ReplyPayload { return ReplyPayload{Text: s} }
