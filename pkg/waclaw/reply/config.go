package reply

import "time"

// ReplyMode selects between a static text reply and a command-driven one.
type ReplyMode string

const (
	ReplyModeText    ReplyMode = "text"
	ReplyModeCommand ReplyMode = "command"
)

// EchoSuppression controls how the "same phone mode" echo-suppression
// predicate compares an inbound body against the engine's own recent
// outbound text. The exact equality predicate was left ambiguous by the
// design notes; this is exposed as a config choice rather than inferred.
type EchoSuppression string

const (
	EchoSuppressionRaw      EchoSuppression = "raw"
	EchoSuppressionStripped EchoSuppression = "stripped"
	EchoSuppressionPrefixed EchoSuppression = "prefixed"
)

// SessionConfig governs scope, reset, and idle-window behaviour (§6,
// inbound.reply.session.*).
type SessionConfig struct {
	PerSender        bool     `yaml:"perSender"`
	ResetTriggers     []string `yaml:"resetTriggers"`
	IdleMinutes       int      `yaml:"idleMinutes"`
	HeartbeatIdleMinutes int   `yaml:"heartbeatIdleMinutes"`
	StorePath         string   `yaml:"storePath"`
	SessionArgBeforeBody bool  `yaml:"sessionArgBeforeBody"`
	SendSystemOnce    bool     `yaml:"sendSystemOnce"`
	SessionIntro      string   `yaml:"sessionIntro"`
}

// AgentConfig selects and shapes the external agent CLI.
type AgentConfig struct {
	Kind           AgentKind `yaml:"kind"`
	Format         string    `yaml:"format"` // e.g. "stream-json", "json", ""
	IdentityPrefix string    `yaml:"identityPrefix"`

	// RPC switches the pi agent to the long-lived RPC transport (spec
	// §4.F) instead of a fresh process per turn. Ignored for every other
	// kind.
	RPC bool `yaml:"rpc"`
}

// ReplyConfig is the `inbound.reply.*` config block (§6).
type ReplyConfig struct {
	Mode    ReplyMode `yaml:"mode"`
	Text    string    `yaml:"text"`
	Command string    `yaml:"command"`

	HeartbeatCommand []string `yaml:"heartbeatCommand"`

	ThinkingDefault ThinkLevel   `yaml:"thinkingDefault"`
	VerboseDefault  VerboseLevel `yaml:"verboseDefault"`

	Cwd            string `yaml:"cwd"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Template       string `yaml:"template"`
	BodyPrefix     string `yaml:"bodyPrefix"`

	MediaURL   string `yaml:"mediaUrl"`
	MediaMaxMb int    `yaml:"mediaMaxMb"`

	TypingIntervalSeconds int `yaml:"typingIntervalSeconds"`
	HeartbeatMinutes      int `yaml:"heartbeatMinutes"`

	Agent   AgentConfig   `yaml:"agent"`
	Session SessionConfig `yaml:"session"`
}

// InboundConfig is the `inbound.*` config block.
type InboundConfig struct {
	AllowFrom       []string        `yaml:"allowFrom"`
	MessagePrefix   string          `yaml:"messagePrefix"`
	ResponsePrefix  string          `yaml:"responsePrefix"`
	TimestampPrefix string          `yaml:"timestampPrefix"` // "" | "true" | IANA zone name
	TranscribeAudio bool            `yaml:"transcribeAudio"`
	EchoSuppression EchoSuppression `yaml:"echoSuppression"`
	Reply           ReplyConfig     `yaml:"reply"`
}

// TranscribeAudioConfig mirrors `transcribeAudio.*` at the document root —
// separate from InboundConfig.TranscribeAudio, which is just the enable
// flag consulted in step 2 of the reply algorithm.
type TranscribeAudioConfig struct {
	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Config is the full record the reply engine consumes. Unknown keys are
// rejected by the loader (pkg/waclaw/config), never silently accepted.
type Config struct {
	Inbound         InboundConfig         `yaml:"inbound"`
	TranscribeAudio TranscribeAudioConfig `yaml:"transcribeAudio"`
}

func (c Config) admissionAllowed(from string) bool {
	for _, allowed := range c.Inbound.AllowFrom {
		if allowed == "*" || allowed == from {
			return true
		}
	}
	return false
}

func (c Config) timeout() time.Duration {
	secs := c.Inbound.Reply.TimeoutSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}
