// Package config loads and validates the YAML configuration document that
// drives a waclaw process: the core reply engine's settings plus the
// channel/ops/secrets blocks that wire the ambient collaborators. Unknown
// keys are rejected rather than silently accepted, matching the design
// note that a dynamic option bag becomes a fixed record with enumerated
// keys — grounded on the teacher's strict-decode config loader.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// ValidationError is the concrete Go error type for the ConfigInvalid
// error-taxonomy kind (spec §7), carrying the offending key.
type ValidationError struct {
	Key string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: invalid key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config: invalid key %q", e.Key)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// WhatsAppConfig drives the WhatsApp Web channel (component L).
type WhatsAppConfig struct {
	SessionDir      string           `yaml:"sessionDir"`
	DatabasePath    string           `yaml:"databasePath"`
	RespondToGroups bool             `yaml:"respondToGroups"`
	RespondToDMs    bool             `yaml:"respondToDMs"`
	AutoRead        bool             `yaml:"autoRead"`
	MediaDir        string           `yaml:"mediaDir"`
	MaxMediaSizeMB  int              `yaml:"maxMediaSizeMB"`
	Reconnect       ReconnectSection `yaml:"reconnect"`
}

// ReconnectSection maps directly onto reply.ReconnectOptions.
type ReconnectSection struct {
	InitialMs   int     `yaml:"initialMs"`
	MaxMs       int     `yaml:"maxMs"`
	Factor      float64 `yaml:"factor"`
	Jitter      float64 `yaml:"jitter"`
	MaxAttempts int     `yaml:"maxAttempts"`
}

// ToOptions converts the config section into the reconnect policy's pure
// option struct.
func (r ReconnectSection) ToOptions() reply.ReconnectOptions {
	return reply.ReconnectOptions{
		BaseDelayMs:  r.InitialMs,
		MaxDelayMs:   r.MaxMs,
		MaxAttempts:  r.MaxAttempts,
		Factor:       r.Factor,
		JitterFactor: r.Jitter,
	}
}

// TelephonyConfig drives the telephony webhook/polling channel
// (component M).
type TelephonyConfig struct {
	WebhookPath         string `yaml:"webhookPath"`
	Address             string `yaml:"address"`
	BaseURL             string `yaml:"baseURL"`
	SendPath            string `yaml:"sendPath"`
	PollPath            string `yaml:"pollPath"`
	AuthTokenEnv        string `yaml:"authTokenEnv"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
}

// OpsConfig drives the Discord alert sink (component O). An empty
// DiscordWebhookURL disables it.
type OpsConfig struct {
	DiscordWebhookURL string `yaml:"discordWebhookURL"`
}

// SecretsConfig names the OS keyring service ResolveSecret consults. The
// serve command uses it for the telephony auth token only; agent provider
// API keys and the WhatsApp device store are not resolved through it.
type SecretsConfig struct {
	KeyringService string `yaml:"keyringService"`
}

// Document is the full YAML document: the core engine config plus the
// ambient collaborator blocks.
type Document struct {
	Inbound         reply.InboundConfig         `yaml:"inbound"`
	TranscribeAudio reply.TranscribeAudioConfig `yaml:"transcribeAudio"`
	Heartbeat       reply.HeartbeatConfig       `yaml:"heartbeat"`
	WhatsApp        WhatsAppConfig              `yaml:"whatsapp"`
	Telephony       TelephonyConfig             `yaml:"telephony"`
	Ops             OpsConfig                   `yaml:"ops"`
	Secrets         SecretsConfig               `yaml:"secrets"`
}

// ReplyConfig projects the parts of Document the reply engine consumes.
func (d Document) ReplyConfig() reply.Config {
	return reply.Config{Inbound: d.Inbound, TranscribeAudio: d.TranscribeAudio}
}

// Load reads path as strict YAML (unknown keys reported as a
// *ValidationError), overlaying any ".env" file found alongside it first
// via godotenv — mirroring the teacher's env-then-config precedence, one
// step short of its vault tier, which this design does not carry forward.
func Load(path string) (*Document, error) {
	if err := godotenv.Overload(envPathFor(path)); err != nil && !os.IsNotExist(err) {
		slog.Default().Warn("failed to load .env overlay", "err", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ValidationError{Key: path, Err: err}
	}

	expanded := os.ExpandEnv(string(raw))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Key: path, Err: err}
	}

	if err := validate(doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func envPathFor(configPath string) string {
	dir := configPath
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			return dir[:i+1] + ".env"
		}
	}
	return ".env"
}

func validate(doc Document) error {
	switch doc.Inbound.Reply.Mode {
	case "", reply.ReplyModeText, reply.ReplyModeCommand:
	default:
		return &ValidationError{Key: "inbound.reply.mode"}
	}
	if doc.Inbound.Reply.Mode == reply.ReplyModeCommand && doc.Inbound.Reply.Command == "" {
		return &ValidationError{Key: "inbound.reply.command", Err: fmt.Errorf("required when mode is \"command\"")}
	}
	if doc.Inbound.Reply.Mode == reply.ReplyModeText && doc.Inbound.Reply.Text == "" {
		return &ValidationError{Key: "inbound.reply.text", Err: fmt.Errorf("required when mode is \"text\"")}
	}
	switch doc.Inbound.EchoSuppression {
	case "", reply.EchoSuppressionRaw, reply.EchoSuppressionStripped, reply.EchoSuppressionPrefixed:
	default:
		return &ValidationError{Key: "inbound.echoSuppression"}
	}
	return nil
}

// ResolveSecret resolves one named secret through keyring → environment
// variable, the two tiers this design carries forward from the teacher's
// vault → keyring → env → config chain (the vault tier does not apply —
// this process has no master-password-protected local store).
func ResolveSecret(service, name string) string {
	if service != "" {
		if val, err := keyring.Get(service, name); err == nil && val != "" {
			return val
		}
	}
	return os.Getenv(name)
}
