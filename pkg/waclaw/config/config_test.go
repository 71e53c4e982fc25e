package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

const validTextConfig = `
inbound:
  allowFrom: ["*"]
  reply:
    mode: text
    text: "pong"
`

func TestLoad_ValidTextConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validTextConfig)
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Inbound.Reply.Text != "pong" {
		t.Errorf("Reply.Text = %q, want pong", doc.Inbound.Reply.Text)
	}
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validTextConfig+"\nbogusTopLevelKey: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown top-level key")
	}
}

func TestLoad_RejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_CommandModeRequiresCommand(t *testing.T) {
	body := `
inbound:
  allowFrom: ["*"]
  reply:
    mode: command
`
	path := writeConfig(t, t.TempDir(), body)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when mode=command has no command")
	}
}

func TestLoad_RejectsInvalidEchoSuppression(t *testing.T) {
	body := validTextConfig + "\n  echoSuppression: \"nonsense\"\n"
	path := writeConfig(t, t.TempDir(), body)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid echoSuppression value")
	}
}

func TestReconnectSection_ToOptions(t *testing.T) {
	r := ReconnectSection{InitialMs: 500, MaxMs: 10_000, Factor: 2, Jitter: 0.1, MaxAttempts: 5}
	opts := r.ToOptions()
	if opts.BaseDelayMs != 500 || opts.MaxDelayMs != 10_000 || opts.MaxAttempts != 5 || opts.JitterFactor != 0.1 {
		t.Errorf("ToOptions() = %+v, unexpected field mapping", opts)
	}
}

func TestResolveSecret_FallsBackToEnv(t *testing.T) {
	t.Setenv("WACLAW_TEST_SECRET", "from-env")
	if got := ResolveSecret("", "WACLAW_TEST_SECRET"); got != "from-env" {
		t.Errorf("ResolveSecret() = %q, want from-env", got)
	}
}

func TestValidationError_ErrorString(t *testing.T) {
	err := &ValidationError{Key: "inbound.reply.mode"}
	if got := err.Error(); got == "" {
		t.Error("expected a non-empty error message")
	}
}
