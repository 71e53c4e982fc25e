package reply

func newGeminiSpec() AgentSpec {
	return AgentSpec{
		Kind: AgentGemini,
		Matches: func(argv []string) bool {
			return basenameMatches(argv, "gemini")
		},
		BuildArgs: func(ctx BuildContext) []string {
			body := withThinkCue(ctx.Body, ctx.ThinkLevel)

			// No flag at all for a new session; --resume <id> to continue one.
			if ctx.IsNewSession {
				return buildArgvWithBody(ctx.Argv, nil, body, ctx.SessionArgBeforeBody)
			}
			return buildArgvWithBody(ctx.Argv, []string{"--resume", ctx.SessionID}, body, ctx.SessionArgBeforeBody)
		},
		ParseOutput: parseStreamJSON,
	}
}
