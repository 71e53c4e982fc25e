package whatsapp

import (
	"testing"

	"go.mau.fi/whatsmeow"
)

func TestParseJID_BarePhoneNumber(t *testing.T) {
	jid, err := parseJID("+1 (555) 123-4567")
	if err != nil {
		t.Fatalf("parseJID() error = %v", err)
	}
	if jid.Server != "s.whatsapp.net" {
		t.Errorf("Server = %q, want s.whatsapp.net", jid.Server)
	}
	if jid.User != "15551234567" {
		t.Errorf("User = %q, want 15551234567", jid.User)
	}
}

func TestParseJID_FullJIDPassesThrough(t *testing.T) {
	jid, err := parseJID("123456789-1234@g.us")
	if err != nil {
		t.Fatalf("parseJID() error = %v", err)
	}
	if jid.Server != "g.us" {
		t.Errorf("Server = %q, want g.us", jid.Server)
	}
}

func TestParseJID_TooShortRejected(t *testing.T) {
	if _, err := parseJID("12345"); err == nil {
		t.Error("expected an error for a too-short phone number")
	}
}

func TestParseJID_EmptyRejected(t *testing.T) {
	if _, err := parseJID(""); err == nil {
		t.Error("expected an error for an empty JID")
	}
}

func TestMediaTypeFor(t *testing.T) {
	tests := []struct {
		mime string
		want whatsmeow.MediaType
	}{
		{"image/png", whatsmeow.MediaImage},
		{"audio/ogg", whatsmeow.MediaAudio},
		{"video/mp4", whatsmeow.MediaVideo},
		{"application/pdf", whatsmeow.MediaDocument},
	}
	for _, tt := range tests {
		if got := mediaTypeFor(tt.mime); got != tt.want {
			t.Errorf("mediaTypeFor(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := baseName("/tmp/media/report.pdf"); got != "report.pdf" {
		t.Errorf("baseName() = %q, want report.pdf", got)
	}
	if got := baseName("report.pdf"); got != "report.pdf" {
		t.Errorf("baseName() = %q, want report.pdf", got)
	}
}

func TestWhatsApp_RecordAndLastSent(t *testing.T) {
	w := New(DefaultConfig(), nil, nil)
	if got := w.lastSentTo("chat@s.whatsapp.net"); got != "" {
		t.Fatalf("lastSentTo() on a fresh channel = %q, want empty", got)
	}
	w.recordSent("chat@s.whatsapp.net", "pong")
	if got := w.lastSentTo("chat@s.whatsapp.net"); got != "pong" {
		t.Errorf("lastSentTo() = %q, want pong", got)
	}
}

func TestWhatsApp_InitialStateIsDisconnected(t *testing.T) {
	w := New(DefaultConfig(), nil, nil)
	if got := w.GetState(); got != StateDisconnected {
		t.Errorf("GetState() = %q, want %q", got, StateDisconnected)
	}
}
