package reply

func newClaudeSpec() AgentSpec {
	return AgentSpec{
		Kind: AgentClaude,
		Matches: func(argv []string) bool {
			return basenameMatches(argv, "claude")
		},
		BuildArgs: func(ctx BuildContext) []string {
			argv := ctx.Argv
			if ctx.Format != "" {
				argv = appendFlags(argv, []string{"--output-format", ctx.Format})
			}

			var sessionFlags []string
			if ctx.IsNewSession {
				sessionFlags = []string{"--session-id", ctx.SessionID}
			} else {
				sessionFlags = []string{"--resume", ctx.SessionID}
			}

			body := ctx.Body
			if ctx.SystemPrompt != "" && !(ctx.SendSystemOnce && ctx.SystemSent) {
				body = ctx.SystemPrompt + "\n\n" + body
			}
			body = withThinkCue(body, ctx.ThinkLevel)

			return buildArgvWithBody(argv, sessionFlags, body, ctx.SessionArgBeforeBody)
		},
		ParseOutput: parseStreamJSON,
	}
}
