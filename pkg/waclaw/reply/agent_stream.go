package reply

import (
	"bufio"
	"encoding/json"
	"strings"
)

// streamEvent is the common shape of one NDJSON line emitted by claude,
// codex, opencode, and gemini in their streaming output formats. Fields
// not present in a given agent's schema are simply left zero.
type streamEvent struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content any    `json:"content"`
	Model   string `json:"model"`
	Stop    string `json:"stop_reason"`
	Usage   map[string]any `json:"usage"`
}

// contentText flattens a streamEvent's Content field, which may be a plain
// string or an array of {type, text} parts (the Anthropic-style content
// block shape the teacher pack's NDJSON tooling also parses).
func (e streamEvent) contentText() string {
	switch v := e.Content.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := m["text"].(string); t != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(t)
			}
		}
		return b.String()
	default:
		return ""
	}
}

func isToolRole(role, typ string) bool {
	return strings.HasPrefix(role, "tool") || strings.HasPrefix(typ, "tool")
}

// parseStreamJSON parses a newline-delimited JSON event stream shared by
// claude/codex/opencode/gemini: only completed assistant messages
// contribute to Texts, tool* roles contribute to ToolResults, duplicate
// consecutive assistant texts collapse, and malformed lines are ignored.
// If raw doesn't look like NDJSON at all (no line parses as JSON), it is
// treated as a single plain-text result instead.
func parseStreamJSON(raw string) AgentParseResult {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AgentParseResult{}
	}

	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var result AgentParseResult
	var meta AgentMeta
	sawJSON := false
	var lastText string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue // malformed lines are ignored
		}
		sawJSON = true

		if ev.Model != "" {
			meta.Model = ev.Model
		}
		if ev.Stop != "" {
			meta.StopReason = ev.Stop
		}
		if len(ev.Usage) > 0 {
			meta.Usage = ev.Usage
		}

		text := ev.contentText()
		if text == "" {
			continue
		}

		if isToolRole(ev.Role, ev.Type) {
			result.ToolResults = append(result.ToolResults, text)
			continue
		}

		if ev.Role == "assistant" || ev.Type == "message" || ev.Type == "assistant" {
			if text == lastText {
				continue // collapse duplicate consecutive assistant texts
			}
			result.Texts = append(result.Texts, text)
			lastText = text
		}
	}

	if !sawJSON {
		return AgentParseResult{Texts: []string{trimmed}}
	}

	if meta.Model != "" || meta.StopReason != "" || len(meta.Usage) > 0 {
		result.Meta = &meta
	}
	return result
}
