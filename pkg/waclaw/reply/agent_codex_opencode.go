package reply

// codex and opencode share identical session-flag conventions: --session
// <id> regardless of whether the session is new or resumed.
func sessionFlagAlways(ctx BuildContext) []string {
	return []string{"--session", ctx.SessionID}
}

func newCodexSpec() AgentSpec {
	return AgentSpec{
		Kind: AgentCodex,
		Matches: func(argv []string) bool {
			return basenameMatches(argv, "codex")
		},
		BuildArgs: func(ctx BuildContext) []string {
			body := withThinkCue(ctx.Body, ctx.ThinkLevel)
			return buildArgvWithBody(ctx.Argv, sessionFlagAlways(ctx), body, ctx.SessionArgBeforeBody)
		},
		ParseOutput: parseStreamJSON,
	}
}

func newOpencodeSpec() AgentSpec {
	return AgentSpec{
		Kind: AgentOpencode,
		Matches: func(argv []string) bool {
			return basenameMatches(argv, "opencode")
		},
		BuildArgs: func(ctx BuildContext) []string {
			body := withThinkCue(ctx.Body, ctx.ThinkLevel)
			return buildArgvWithBody(ctx.Argv, sessionFlagAlways(ctx), body, ctx.SessionArgBeforeBody)
		},
		ParseOutput: parseStreamJSON,
	}
}

func withThinkCue(body string, level ThinkLevel) string {
	if cue := thinkCue(level); cue != "" {
		return body + "\n\n" + cue
	}
	return body
}
