package reply

func newPiSpec() AgentSpec {
	return AgentSpec{
		Kind: AgentPi,
		Matches: func(argv []string) bool {
			return basenameMatches(argv, "pi", "tau")
		},
		BuildArgs: func(ctx BuildContext) []string {
			sessionFlags := []string{"--session", ctx.SessionID}
			return buildArgvWithBody(piBaseArgv(ctx), sessionFlags, piEffectiveBody(ctx), ctx.SessionArgBeforeBody)
		},
		RPCArgv:     piBaseArgv,
		ParseOutput: parsePiOutput,
	}
}

// piBaseArgv builds pi's flags up to (but excluding) the session flags and
// body — shared by the one-shot BuildArgs path and the RPC transport's
// child-process argv, which never carries the body (spec §4.F: "the body
// argument is stripped from argv ... the body is transmitted over the RPC
// channel").
func piBaseArgv(ctx BuildContext) []string {
	argv := appendFlags(ctx.Argv, []string{"-p"})
	if ctx.Format == "json" {
		argv = appendFlags(argv, []string{"--mode", "json"})
	}
	if ctx.ThinkLevel != ThinkOff {
		argv = appendFlags(argv, []string{"--think", string(ctx.ThinkLevel)})
	}
	return argv
}

// piEffectiveBody prepends pi's identity prefix to the body unless
// sendSystemOnce has already fired it for this session (spec §4.D: "identity
// prefix prepended to body unless sendSystemOnce && systemSent").
func piEffectiveBody(ctx BuildContext) string {
	body := ctx.Body
	if ctx.IdentityPrefix != "" && !(ctx.SendSystemOnce && ctx.SystemSent) {
		body = ctx.IdentityPrefix + "\n\n" + body
	}
	return body
}

// parsePiOutput parses pi's NDJSON event stream, which carries a "mode"
// discriminator on each event in addition to the common role/content
// shape shared with the other streaming agents.
func parsePiOutput(raw string) AgentParseResult {
	return parseStreamJSON(raw)
}
