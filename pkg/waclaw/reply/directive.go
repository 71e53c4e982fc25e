package reply

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ThinkLevel is a session- or run-level thinking budget.
type ThinkLevel string

const (
	ThinkOff    ThinkLevel = "off"
	ThinkMinimal ThinkLevel = "minimal"
	ThinkLow    ThinkLevel = "low"
	ThinkMedium ThinkLevel = "medium"
	ThinkHigh   ThinkLevel = "high"
)

// VerboseLevel toggles tool-result narration.
type VerboseLevel string

const (
	VerboseOff VerboseLevel = "off"
	VerboseOn  VerboseLevel = "on"
)

// Directives is the parsed result of scanning an inbound body for inline
// tokens that modify runtime behaviour.
type Directives struct {
	Think          ThinkLevel
	HasThink       bool
	Verbose        VerboseLevel
	HasVerbose     bool
	ResetRequested bool
	AbortRequested bool
	DirectiveOnly  bool
	StrippedBody   string
}

// abortWords are exact-match bodies (case-insensitive, trimmed) that
// short-circuit a turn.
var abortWords = map[string]bool{
	"stop": true, "esc": true, "abort": true, "wait": true, "exit": true,
}

// thinkTokenRE matches "/think:high", "think low", "t:max", etc. The leading
// slash is optional and is stripped together with the token.
var thinkTokenRE = regexp.MustCompile(`(?i)/?\b(t|think|thinking)(:|\s+)(off|minimal|low|medium|high|max|highest)\b`)

// verboseTokenRE matches "/verbose:on", "verbose full", "v off", etc.
var verboseTokenRE = regexp.MustCompile(`(?i)/?\b(v|verbose)(:|\s+)(on|full|off)\b`)

// DefaultResetTriggers are the exact-match (or "<trigger> <anything>"
// prefix) bodies that request a fresh session.
var DefaultResetTriggers = []string{"/reset", "/new", "new session", "reset"}

// ParseDirectives extracts directives from a raw inbound body, applying the
// rules in the order specified by the design: abort check, inline token
// scan, reset check, directive-only detection, then stripping.
func ParseDirectives(body string, resetTriggers []string) Directives {
	trimmed := strings.TrimSpace(body)
	d := Directives{StrippedBody: trimmed}

	// 1. Abort words — exact match, case-insensitive, unicode-folded.
	lower := normalizeForAbort(trimmed)
	if abortWords[lower] {
		d.AbortRequested = true
	}

	// 2. Inline think/verbose tokens — last match wins.
	thinkMatches := thinkTokenRE.FindAllStringSubmatch(trimmed, -1)
	if len(thinkMatches) > 0 {
		last := thinkMatches[len(thinkMatches)-1]
		d.HasThink = true
		d.Think = normalizeThinkWord(last[3])
	}
	verboseMatches := verboseTokenRE.FindAllStringSubmatch(trimmed, -1)
	if len(verboseMatches) > 0 {
		last := verboseMatches[len(verboseMatches)-1]
		d.HasVerbose = true
		d.Verbose = normalizeVerboseWord(last[3])
	}

	// 3. Reset trigger — exact match or "<trigger> <anything>" prefix.
	if !d.AbortRequested {
		triggers := resetTriggers
		if len(triggers) == 0 {
			triggers = DefaultResetTriggers
		}
		for _, trig := range triggers {
			tl := strings.ToLower(trig)
			if lower == tl || strings.HasPrefix(lower, tl+" ") {
				d.ResetRequested = true
				break
			}
		}
	}

	// 4/5. Strip inline directive tokens to get the stripped body, then
	// decide directive-only-ness.
	stripped := strings.TrimSpace(thinkTokenRE.ReplaceAllString(trimmed, ""))
	stripped = strings.TrimSpace(verboseTokenRE.ReplaceAllString(stripped, ""))
	stripped = strings.Join(strings.Fields(stripped), " ")

	hadDirective := d.HasThink || d.HasVerbose
	if hadDirective && stripped == "" {
		d.DirectiveOnly = true
		d.StrippedBody = trimmed
	} else {
		d.StrippedBody = stripped
		if d.StrippedBody == "" {
			d.StrippedBody = trimmed
		}
	}

	return d
}

func normalizeThinkWord(w string) ThinkLevel {
	switch strings.ToLower(w) {
	case "off":
		return ThinkOff
	case "minimal":
		return ThinkMinimal
	case "low":
		return ThinkLow
	case "medium":
		return ThinkMedium
	case "high", "max", "highest":
		return ThinkHigh
	default:
		return ThinkOff
	}
}

func normalizeVerboseWord(w string) VerboseLevel {
	switch strings.ToLower(w) {
	case "on", "full":
		return VerboseOn
	case "off":
		return VerboseOff
	default:
		return VerboseOff
	}
}

// ResolveThinkLevel applies the inline > session default > config default >
// off precedence from the design.
func ResolveThinkLevel(d Directives, sessionDefault, configDefault ThinkLevel) ThinkLevel {
	if d.HasThink {
		return d.Think
	}
	if sessionDefault != "" {
		return sessionDefault
	}
	if configDefault != "" {
		return configDefault
	}
	return ThinkOff
}

// ResolveVerboseLevel applies the same precedence for verbosity.
func ResolveVerboseLevel(d Directives, sessionDefault, configDefault VerboseLevel) VerboseLevel {
	if d.HasVerbose {
		return d.Verbose
	}
	if sessionDefault != "" {
		return sessionDefault
	}
	if configDefault != "" {
		return configDefault
	}
	return VerboseOff
}

// normalizeForAbort mirrors the multilingual abort-trigger normalisation
// idiom from the agent command surface: NFKC fold, lowercase, trim.
func normalizeForAbort(text string) string {
	n := norm.NFKC.String(text)
	n = strings.ToLower(n)
	return strings.TrimSpace(strings.Join(strings.Fields(n), " "))
}
