package reply

import "testing"

func TestParseStreamJSON_PlainTextFallback(t *testing.T) {
	got := parseStreamJSON("just some plain text, not JSON at all")
	if len(got.Texts) != 1 || got.Texts[0] != "just some plain text, not JSON at all" {
		t.Errorf("Texts = %v, want single plain-text element", got.Texts)
	}
}

func TestParseStreamJSON_DedupsConsecutiveAssistantTexts(t *testing.T) {
	raw := `{"type":"message","role":"assistant","content":"hello there"}
{"type":"message","role":"assistant","content":"hello there"}
{"type":"message","role":"assistant","content":"second reply"}`

	got := parseStreamJSON(raw)
	want := []string{"hello there", "second reply"}
	if len(got.Texts) != len(want) {
		t.Fatalf("Texts = %v, want %v", got.Texts, want)
	}
	for i := range want {
		if got.Texts[i] != want[i] {
			t.Errorf("Texts[%d] = %q, want %q", i, got.Texts[i], want[i])
		}
	}
}

func TestParseStreamJSON_RoutesToolRoleToToolResults(t *testing.T) {
	raw := `{"type":"tool_result","role":"tool","content":"ran ls"}
{"type":"message","role":"assistant","content":"done"}`

	got := parseStreamJSON(raw)
	if len(got.ToolResults) != 1 || got.ToolResults[0] != "ran ls" {
		t.Errorf("ToolResults = %v, want [ran ls]", got.ToolResults)
	}
	if len(got.Texts) != 1 || got.Texts[0] != "done" {
		t.Errorf("Texts = %v, want [done]", got.Texts)
	}
}

func TestParseStreamJSON_IgnoresMalformedLines(t *testing.T) {
	raw := "not json\n{\"type\":\"message\",\"role\":\"assistant\",\"content\":\"ok\"}\n{broken"
	got := parseStreamJSON(raw)
	if len(got.Texts) != 1 || got.Texts[0] != "ok" {
		t.Errorf("Texts = %v, want [ok]", got.Texts)
	}
}

func TestParseStreamJSON_ContentBlockArray(t *testing.T) {
	raw := `{"type":"message","role":"assistant","content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]}`
	got := parseStreamJSON(raw)
	if len(got.Texts) != 1 || got.Texts[0] != "part one\npart two" {
		t.Errorf("Texts = %v, want [\"part one\\npart two\"]", got.Texts)
	}
}

func TestParseStreamJSON_CapturesMeta(t *testing.T) {
	raw := `{"type":"message","role":"assistant","content":"hi","model":"claude-x","stop_reason":"end_turn"}`
	got := parseStreamJSON(raw)
	if got.Meta == nil {
		t.Fatal("expected Meta to be populated")
	}
	if got.Meta.Model != "claude-x" || got.Meta.StopReason != "end_turn" {
		t.Errorf("Meta = %+v, want Model=claude-x StopReason=end_turn", got.Meta)
	}
}

func TestParseStreamJSON_EmptyInput(t *testing.T) {
	got := parseStreamJSON("   ")
	if len(got.Texts) != 0 || len(got.ToolResults) != 0 {
		t.Errorf("expected empty result for blank input, got %+v", got)
	}
}
