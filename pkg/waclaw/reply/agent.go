package reply

import "path/filepath"

// AgentKind names one of the supported conversational agent CLIs.
type AgentKind string

const (
	AgentClaude   AgentKind = "claude"
	AgentOpencode AgentKind = "opencode"
	AgentPi       AgentKind = "pi"
	AgentCodex    AgentKind = "codex"
	AgentGemini   AgentKind = "gemini"
)

// BuildContext carries everything an AgentSpec.BuildArgs needs to produce a
// final argv for one invocation.
type BuildContext struct {
	Argv []string // caller-provided base argv, e.g. ["claude", "-p"]

	Body string

	SessionID    string
	IsNewSession bool

	SendSystemOnce bool
	SystemSent     bool
	SystemPrompt   string // claude's templated session-intro system prompt, if any
	IdentityPrefix string // agent.identityPrefix (§4.D), templated

	Format string // agent.format config value, e.g. "json"

	SessionArgBeforeBody bool // default true per design

	ThinkLevel ThinkLevel // resolved effective level; ThinkOff means no cue
}

// AgentParseResult is what AgentSpec.ParseOutput extracts from raw stdout.
type AgentParseResult struct {
	Texts       []string
	ToolResults []string
	Meta        *AgentMeta
}

// AgentSpec is a stateless, pure-function record describing one agent
// kind's argv conventions and output shape. Deliberately a value record
// rather than an interface/class hierarchy, per the design note favouring
// a small capability record per kind.
type AgentSpec struct {
	Kind        AgentKind
	Matches     func(argv []string) bool
	BuildArgs   func(ctx BuildContext) []string
	ParseOutput func(raw string) AgentParseResult

	// RPCArgv builds the base argv for the agent's long-lived RPC child
	// (spec §4.F), excluding the body and session flags — the body is
	// transmitted over the RPC channel itself, not argv. Nil for every
	// agent kind but pi, the only one with an RPC transport.
	RPCArgv func(ctx BuildContext) []string
}

// Registry lists every supported agent, in priority order for Detect.
var Registry = []AgentSpec{
	newClaudeSpec(),
	newCodexSpec(),
	newOpencodeSpec(),
	newGeminiSpec(),
	newPiSpec(),
}

// Detect finds the AgentSpec whose Matches predicate accepts argv.
func Detect(argv []string) *AgentSpec {
	for i := range Registry {
		if Registry[i].Matches(argv) {
			return &Registry[i]
		}
	}
	return nil
}

// ByKind returns the AgentSpec for an explicit kind, bypassing basename
// detection — used when config names the agent kind directly.
func ByKind(kind AgentKind) *AgentSpec {
	for i := range Registry {
		if Registry[i].Kind == kind {
			return &Registry[i]
		}
	}
	return nil
}

func basenameMatches(argv []string, names ...string) bool {
	if len(argv) == 0 {
		return false
	}
	base := filepath.Base(argv[0])
	for _, n := range names {
		if base == n {
			return true
		}
	}
	return false
}

// appendFlags appends flag/value pairs to the end of the current argv —
// used for flags that have no ordering relationship to the body (output
// format, print mode, etc).
func appendFlags(argv []string, extra []string) []string {
	out := make([]string, 0, len(argv)+len(extra))
	out = append(out, argv...)
	out = append(out, extra...)
	return out
}

// buildArgvWithBody assembles the final argv, placing the session
// flag/value pair either immediately before the body (sessionArgBeforeBody
// = true, the default) or after it.
func buildArgvWithBody(argv []string, sessionFlags []string, body string, sessionArgBeforeBody bool) []string {
	out := make([]string, 0, len(argv)+len(sessionFlags)+1)
	if sessionArgBeforeBody {
		out = append(out, argv...)
		out = append(out, sessionFlags...)
		out = append(out, body)
		return out
	}
	out = append(out, argv...)
	out = append(out, body)
	out = append(out, sessionFlags...)
	return out
}

// thinkCue maps a non-pi think level to the trailing cue word appended to
// the prompt body.
func thinkCue(level ThinkLevel) string {
	switch level {
	case ThinkMinimal:
		return "think"
	case ThinkLow:
		return "think hard"
	case ThinkMedium:
		return "think harder"
	case ThinkHigh:
		return "ultrathink"
	default:
		return ""
	}
}

