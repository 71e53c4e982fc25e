package reply

import "testing"

func TestParseDirectives_Abort(t *testing.T) {
	tests := []string{"stop", "Stop", " ESC ", "abort", "wait", "exit"}
	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			d := ParseDirectives(body, nil)
			if !d.AbortRequested {
				t.Errorf("ParseDirectives(%q) AbortRequested = false, want true", body)
			}
		})
	}
}

func TestParseDirectives_ThinkToken(t *testing.T) {
	tests := []struct {
		body string
		want ThinkLevel
	}{
		{"please /think:high now", ThinkHigh},
		{"think low and help", ThinkLow},
		{"t:max do it", ThinkHigh},
		{"thinking:minimal ok", ThinkMinimal},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			d := ParseDirectives(tt.body, nil)
			if !d.HasThink {
				t.Fatalf("ParseDirectives(%q) HasThink = false, want true", tt.body)
			}
			if d.Think != tt.want {
				t.Errorf("ParseDirectives(%q) Think = %q, want %q", tt.body, d.Think, tt.want)
			}
		})
	}
}

func TestParseDirectives_LastMatchWins(t *testing.T) {
	d := ParseDirectives("think:low then think:high actually", nil)
	if d.Think != ThinkHigh {
		t.Errorf("Think = %q, want %q", d.Think, ThinkHigh)
	}
}

func TestParseDirectives_ResetTrigger(t *testing.T) {
	d := ParseDirectives("/reset please", []string{"/reset"})
	if !d.ResetRequested {
		t.Error("expected ResetRequested = true for trigger prefix match")
	}

	d2 := ParseDirectives("resetting things", []string{"/reset"})
	if d2.ResetRequested {
		t.Error("expected ResetRequested = false for non-matching body")
	}
}

func TestParseDirectives_DirectiveOnly(t *testing.T) {
	d := ParseDirectives("/think:high", nil)
	if !d.DirectiveOnly {
		t.Error("expected DirectiveOnly = true for a body consisting solely of a directive")
	}
	if d.StrippedBody == "" {
		t.Error("StrippedBody must never be empty")
	}
}

func TestParseDirectives_StrippedBodyNeverEmpty(t *testing.T) {
	d := ParseDirectives("think high", nil)
	if d.StrippedBody == "" {
		t.Error("StrippedBody must never be empty")
	}
}

func TestResolveThinkLevel_Precedence(t *testing.T) {
	inline := Directives{HasThink: true, Think: ThinkHigh}
	if got := ResolveThinkLevel(inline, ThinkLow, ThinkMinimal); got != ThinkHigh {
		t.Errorf("inline precedence: got %q, want %q", got, ThinkHigh)
	}

	noInline := Directives{}
	if got := ResolveThinkLevel(noInline, ThinkLow, ThinkMinimal); got != ThinkLow {
		t.Errorf("session precedence: got %q, want %q", got, ThinkLow)
	}

	if got := ResolveThinkLevel(noInline, "", ThinkMinimal); got != ThinkMinimal {
		t.Errorf("config precedence: got %q, want %q", got, ThinkMinimal)
	}

	if got := ResolveThinkLevel(noInline, "", ""); got != ThinkOff {
		t.Errorf("default: got %q, want %q", got, ThinkOff)
	}
}
