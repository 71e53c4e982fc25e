package reply

import "strings"

// TemplateContext holds the values substitutable into a template string.
// Unrecognised tokens are left verbatim — the engine assumes the caller
// controls the template, so no escaping is performed.
type TemplateContext struct {
	Body          string
	BodyStripped  string
	From          string
	To            string
	MessageSid    string
	SessionID     string
	IsNewSession  bool
	MediaPath     string
}

// tokenValues maps recognised {{Token}} names to the TemplateContext
// field they pull from. Order doesn't matter; ApplyTemplate replaces each
// independently.
func (c TemplateContext) tokenValues() map[string]string {
	isNew := "false"
	if c.IsNewSession {
		isNew = "true"
	}
	return map[string]string{
		"{{Body}}":         c.Body,
		"{{BodyStripped}}": c.BodyStripped,
		"{{From}}":         c.From,
		"{{To}}":           c.To,
		"{{MessageSid}}":   c.MessageSid,
		"{{SessionId}}":    c.SessionID,
		"{{IsNewSession}}": isNew,
		"{{MediaPath}}":    c.MediaPath,
	}
}

// ApplyTemplate substitutes recognised tokens in template with values from
// ctx. Unknown tokens are left untouched.
func ApplyTemplate(template string, ctx TemplateContext) string {
	if template == "" {
		return ""
	}
	out := template
	for token, value := range ctx.tokenValues() {
		if value == "" && !strings.Contains(out, token) {
			continue
		}
		out = strings.ReplaceAll(out, token, value)
	}
	return out
}
