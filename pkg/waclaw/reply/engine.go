package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Engine is the top-level orchestrator: one call, reply(message, config),
// consuming the template engine, directive parser, session store, agent
// registry, command queue, process runner, and media splitter. It never
// raises errors across its own boundary — every path returns a Result,
// even a failure path, except admission refusal and suppressed heartbeats.
type Engine struct {
	Config Config
	Store  *SessionStore
	Queue  *CommandQueue
	Logger *slog.Logger

	// PiRPC is the reusable RPC client for the pi agent. dispatchCommand
	// creates it lazily on the first turn with agent.rpc enabled, and
	// Close reaps its child process.
	PiRPC *PiRPCClient
}

// NewEngine wires an Engine from its dependencies. Queue and Store must be
// shared across every inbound message and every heartbeat tick handled by
// the same process.
func NewEngine(cfg Config, store *SessionStore, queue *CommandQueue, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Config: cfg, Store: store, Queue: queue, Logger: logger.With("component", "reply_engine")}
}

// Close reaps the pi RPC child, if one was ever started. Safe to call even
// when agent.rpc was never enabled.
func (e *Engine) Close() error {
	if e.PiRPC != nil {
		return e.PiRPC.Close()
	}
	return nil
}

// Reply is the engine's single operation (spec §4.H).
func (e *Engine) Reply(ctx context.Context, msg Message) (result Result) {
	cfg := e.Config
	defer func() { result.Payloads = e.applyOutboundPrefixes(result.Payloads) }()

	// 1. Admission.
	if !cfg.admissionAllowed(msg.From) {
		e.Logger.Debug("admission refused", "from", msg.From)
		return Result{Meta: CommandReplyMeta{Error: ErrorAdmissionRefused}}
	}

	body := msg.Body
	mediaPath := ""
	if len(msg.MediaPaths) > 0 {
		mediaPath = msg.MediaPaths[0]
	}

	// 2. Transcription.
	if cfg.Inbound.TranscribeAudio && hasAudioMedia(msg.MediaPaths) && cfg.TranscribeAudio.Command != "" {
		transcript, err := TranscribeAudio(ctx, mediaPath, TranscribeOptions{
			Command:        cfg.TranscribeAudio.Command,
			TimeoutSeconds: cfg.TranscribeAudio.TimeoutSeconds,
			Cwd:             cfg.Inbound.Reply.Cwd,
		})
		if err != nil {
			e.Logger.Warn("transcription failed, keeping original body", "err", err)
		} else {
			body = transcript
		}
	}

	if cfg.Inbound.MessagePrefix != "" {
		body = cfg.Inbound.MessagePrefix + body
	}

	// 3. Directive parsing.
	d := ParseDirectives(body, cfg.Inbound.Reply.Session.ResetTriggers)

	sessionKey := SessionKey(msg.From, cfg.Inbound.Reply.Session.PerSender)

	// 4. Abort handling — do not touch the command queue.
	if d.AbortRequested {
		e.Store.SetAbortPending(sessionKey, true)
		return Result{Payloads: []ReplyPayload{textPayload("Agent was aborted.")}}
	}

	// 5. Directive-only message.
	if d.DirectiveOnly {
		return Result{Payloads: []ReplyPayload{e.applyDirectiveOnly(sessionKey, d)}}
	}

	// 6. Session resolution.
	idleMinutes := cfg.Inbound.Reply.Session.IdleMinutes
	session, isNewSession, isFirstTurn := e.Store.Get(sessionKey, idleMinutes, d.ResetRequested)

	// 7. Body composition.
	effectiveBody := d.StrippedBody
	if session.AbortPending {
		effectiveBody = "[Previous turn was aborted by the user.] " + effectiveBody
		e.Store.SetAbortPending(sessionKey, false)
	}
	if cfg.Inbound.Reply.BodyPrefix != "" {
		effectiveBody = cfg.Inbound.Reply.BodyPrefix + effectiveBody
	}

	thinkLevel := ResolveThinkLevel(d, session.ThinkDefault, cfg.Inbound.Reply.ThinkingDefault)
	verboseLevel := ResolveVerboseLevel(d, session.VerboseDefault, cfg.Inbound.Reply.VerboseDefault)

	e.Store.Touch(sessionKey)

	tmplCtx := TemplateContext{
		Body:         body,
		BodyStripped: d.StrippedBody,
		From:         msg.From,
		To:           msg.To,
		MessageSid:   msg.MessageID,
		SessionID:    session.ID,
		IsNewSession: isNewSession,
		MediaPath:    mediaPath,
	}

	// 8. Text mode.
	if cfg.Inbound.Reply.Mode == ReplyModeText {
		rendered := ApplyTemplate(cfg.Inbound.Reply.Text, tmplCtx)
		return Result{Payloads: chunkAsPayloads(rendered, WebMaxChars)}
	}

	// 9. Command mode.
	return e.runCommand(ctx, cfg, sessionKey, session, isFirstTurn, effectiveBody, thinkLevel, verboseLevel, tmplCtx)
}

// ReplyHeartbeat runs a heartbeat probe body against sessionKey using the
// same directive-parsing and command-building logic as Reply, but differs
// in the three ways a background probe must (spec §4.I, testable
// property 4, scenario S6):
//
//   - it skips admission control — a heartbeat has no inbound sender to
//     admit, it targets a session the store already holds;
//   - it never calls SessionStore.Touch, so a probe cannot keep an idle
//     session artificially alive;
//   - it does not enqueue the command itself. The heartbeat scheduler
//     already holds the command queue's single execution slot before
//     calling in here (tickSession wraps this call in its own Enqueue);
//     enqueuing again here would deadlock the outer hold against the
//     inner wait.
func (e *Engine) ReplyHeartbeat(ctx context.Context, sessionKey, body string) Result {
	cfg := e.Config
	// inbound.reply.heartbeatCommand overrides the argv used for this
	// probe only; the session's normal command is untouched for the next
	// user-initiated turn.
	if len(cfg.Inbound.Reply.HeartbeatCommand) > 0 {
		cfg.Inbound.Reply.Command = strings.Join(cfg.Inbound.Reply.HeartbeatCommand, " ")
	}

	d := ParseDirectives(body, cfg.Inbound.Reply.Session.ResetTriggers)
	if d.DirectiveOnly {
		return Result{Payloads: []ReplyPayload{e.applyDirectiveOnly(sessionKey, d)}}
	}

	idleMinutes := cfg.Inbound.Reply.Session.IdleMinutes
	session, _, isFirstTurn := e.Store.Get(sessionKey, idleMinutes, d.ResetRequested)

	effectiveBody := d.StrippedBody
	if cfg.Inbound.Reply.BodyPrefix != "" {
		effectiveBody = cfg.Inbound.Reply.BodyPrefix + effectiveBody
	}

	thinkLevel := ResolveThinkLevel(d, session.ThinkDefault, cfg.Inbound.Reply.ThinkingDefault)
	verboseLevel := ResolveVerboseLevel(d, session.VerboseDefault, cfg.Inbound.Reply.VerboseDefault)

	tmplCtx := TemplateContext{
		Body:         body,
		BodyStripped: d.StrippedBody,
		From:         sessionKey,
		SessionID:    session.ID,
		IsNewSession: false,
	}

	if cfg.Inbound.Reply.Mode == ReplyModeText {
		rendered := ApplyTemplate(cfg.Inbound.Reply.Text, tmplCtx)
		return Result{Payloads: chunkAsPayloads(rendered, WebMaxChars)}
	}

	return e.dispatchCommand(ctx, cfg, sessionKey, session, isFirstTurn, effectiveBody, thinkLevel, verboseLevel, tmplCtx, false)
}

// applyOutboundPrefixes prepends the configured timestamp and response
// prefixes (§6 inbound.responsePrefix/.timestampPrefix) once, to the first
// outbound payload only — they decorate the message as a whole, not every
// chunk. Used by Reply only: ReplyHeartbeat's HEARTBEAT_OK suppression
// compares the bare agent text, and a prefix would defeat that match.
func (e *Engine) applyOutboundPrefixes(payloads []ReplyPayload) []ReplyPayload {
	if len(payloads) == 0 {
		return payloads
	}
	prefix := e.timestampPrefixString() + e.Config.Inbound.ResponsePrefix
	if prefix == "" {
		return payloads
	}
	payloads[0].Text = prefix + payloads[0].Text
	return payloads
}

// timestampPrefixString renders inbound.timestampPrefix: "" disables it,
// "true" renders the current UTC time, anything else is taken as an IANA
// zone name.
func (e *Engine) timestampPrefixString() string {
	tp := e.Config.Inbound.TimestampPrefix
	if tp == "" {
		return ""
	}
	loc := time.UTC
	if tp != "true" {
		if l, err := time.LoadLocation(tp); err == nil {
			loc = l
		}
	}
	return "[" + time.Now().In(loc).Format(time.RFC3339) + "] "
}

func hasAudioMedia(paths []string) bool {
	for _, p := range paths {
		lower := strings.ToLower(p)
		if strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".mp3") ||
			strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".m4a") {
			return true
		}
	}
	return false
}

func (e *Engine) applyDirectiveOnly(sessionKey string, d Directives) ReplyPayload {
	if d.HasThink {
		e.Store.SetThinkDefault(sessionKey, d.Think)
		if d.Think == ThinkOff {
			return textPayload("Thinking disabled.")
		}
		return textPayload(fmt.Sprintf("Thinking level set to %s.", d.Think))
	}
	if d.HasVerbose {
		e.Store.SetVerboseDefault(sessionKey, d.Verbose)
		if d.Verbose == VerboseOn {
			return textPayload("Verbose logging enabled.")
		}
		return textPayload("Verbose logging disabled.")
	}
	return textPayload("Unrecognised directive.")
}

func (e *Engine) runCommand(
	ctx context.Context,
	cfg Config,
	sessionKey string,
	session Session,
	isFirstTurn bool,
	body string,
	thinkLevel ThinkLevel,
	verboseLevel VerboseLevel,
	tmplCtx TemplateContext,
) Result {
	return e.dispatchCommand(ctx, cfg, sessionKey, session, isFirstTurn, body, thinkLevel, verboseLevel, tmplCtx, true)
}

// dispatchCommand builds the agent's argv and runs it. When queued is
// true (the normal inbound-message path) the run is wrapped in
// e.Queue.Enqueue so it waits its turn behind any other in-flight
// command. When queued is false, the caller already holds the queue's
// single execution slot and the run happens directly — used by
// ReplyHeartbeat, which is itself invoked from inside the heartbeat
// scheduler's own Enqueue call.
func (e *Engine) dispatchCommand(
	ctx context.Context,
	cfg Config,
	sessionKey string,
	session Session,
	isFirstTurn bool,
	body string,
	thinkLevel ThinkLevel,
	verboseLevel VerboseLevel,
	tmplCtx TemplateContext,
	queued bool,
) Result {
	spec := ByKind(cfg.Inbound.Reply.Agent.Kind)
	if spec == nil {
		return Result{Payloads: []ReplyPayload{textPayload("No agent configured.")}}
	}

	rendered := ApplyTemplate(cfg.Inbound.Reply.Command, tmplCtx)
	argv := strings.Fields(rendered)
	if len(argv) == 0 {
		return Result{Payloads: []ReplyPayload{textPayload("No command configured.")}}
	}

	systemPrompt := ""
	if cfg.Inbound.Reply.Session.SessionIntro != "" {
		systemPrompt = ApplyTemplate(cfg.Inbound.Reply.Session.SessionIntro, tmplCtx)
	}
	identityPrefix := ""
	if cfg.Inbound.Reply.Agent.IdentityPrefix != "" {
		identityPrefix = ApplyTemplate(cfg.Inbound.Reply.Agent.IdentityPrefix, tmplCtx)
	}

	buildCtx := BuildContext{
		Argv:                 argv,
		Body:                 body,
		SessionID:            session.ID,
		IsNewSession:         tmplCtx.IsNewSession,
		SendSystemOnce:       cfg.Inbound.Reply.Session.SendSystemOnce,
		SystemSent:           session.SystemSent,
		SystemPrompt:         systemPrompt,
		IdentityPrefix:       identityPrefix,
		Format:               cfg.Inbound.Reply.Agent.Format,
		SessionArgBeforeBody: cfg.Inbound.Reply.Session.SessionArgBeforeBody,
		ThinkLevel:            thinkLevel,
	}

	timeoutMs := cfg.Inbound.Reply.TimeoutSeconds * 1000
	if timeoutMs <= 0 {
		timeoutMs = 60_000
	}

	start := time.Now()
	var queuedMs int64
	var queuedAhead int
	var rawStdout string

	useRPC := spec.Kind == AgentPi && cfg.Inbound.Reply.Agent.RPC && spec.RPCArgv != nil

	var runFn func(context.Context) (Result, error)
	if useRPC {
		if e.PiRPC == nil {
			e.PiRPC = NewPiRPCClient(spec.RPCArgv(buildCtx), cfg.Inbound.Reply.Cwd)
		}
		rpcBody := piEffectiveBody(buildCtx)
		runFn = func(c context.Context) (Result, error) {
			res, callErr := e.PiRPC.Call(c, rpcBody, time.Duration(timeoutMs)*time.Millisecond)
			rawStdout = res.Stdout
			return Result{Meta: CommandReplyMeta{
				DurationMs: time.Since(start).Milliseconds(),
				Killed:     res.Killed,
			}}, wrapRunResult(res, callErr)
		}
	} else {
		finalArgv := spec.BuildArgs(buildCtx)
		runFn = func(c context.Context) (Result, error) {
			res, runErr := Run(c, finalArgv, RunOptions{Cwd: cfg.Inbound.Reply.Cwd, TimeoutMs: timeoutMs})
			rawStdout = res.Stdout
			return Result{Meta: CommandReplyMeta{
				DurationMs: time.Since(start).Milliseconds(),
				ExitCode:   res.ExitCode,
				Signal:     res.Signal,
				Killed:     res.Killed,
			}}, wrapRunResult(res, runErr)
		}
	}

	var err error
	if queued {
		_, err = e.Queue.Enqueue(ctx, runFn, func(waitMs int64, ahead int) {
			queuedMs = waitMs
			queuedAhead = ahead
		})
	} else {
		_, err = runFn(ctx)
	}

	meta := CommandReplyMeta{
		DurationMs:  time.Since(start).Milliseconds(),
		QueuedMs:    queuedMs,
		QueuedAhead: queuedAhead,
	}

	if err != nil {
		if re, ok := err.(*runResultError); ok {
			meta.ExitCode = re.res.ExitCode
			meta.Signal = re.res.Signal
			meta.Killed = re.res.Killed
			// 10. Timeout handling.
			if re.res.Killed {
				meta.Error = ErrorCommandTimeout
				text := fmt.Sprintf(
					"The agent timed out after %ds. Partial output: %s",
					cfg.Inbound.Reply.TimeoutSeconds,
					truncate(re.res.Stdout, 800),
				)
				return Result{Payloads: []ReplyPayload{textPayload(text)}, Meta: meta}
			}
			// 11. Non-zero exit.
			meta.Error = ErrorCommandNonZeroExit
			if re.res.Signal != "" {
				meta.Error = ErrorCommandKilled
			}
			text := fmt.Sprintf(
				"The agent exited with code %d%s. Partial output: %s",
				re.res.ExitCode,
				signalSuffix(re.res.Signal),
				truncate(re.res.Stdout, 500),
			)
			return Result{Payloads: []ReplyPayload{textPayload(text)}, Meta: meta}
		}
		meta.Error = ErrorProviderTransport
		return Result{Payloads: []ReplyPayload{textPayload("The agent could not be run.")}, Meta: meta}
	}

	stdout := rawStdout
	// 12. Output parsing.
	parsed := spec.ParseOutput(stdout)
	payloads := e.buildPayloads(parsed, verboseLevel, cfg.Inbound.Reply.MediaMaxMb)

	if len(payloads) == 0 {
		trimmed := strings.TrimSpace(stdout)
		if trimmed != "" {
			payloads = chunkAsPayloads(trimmed, WebMaxChars)
		} else {
			payloads = []ReplyPayload{textPayload("(command produced no output)")}
			meta.Error = ErrorAgentParseFailure
		}
	}

	if parsed.Meta != nil {
		meta.AgentMeta = parsed.Meta
	}

	// 14. System-sent tracking.
	if isFirstTurn {
		e.Store.SetSystemSent(sessionKey)
	}

	return Result{Payloads: payloads, Meta: meta}
}

// buildPayloads runs the media splitter over every parsed text, applies
// the size cap, and optionally appends tool-result payloads under
// verbose mode.
func (e *Engine) buildPayloads(parsed AgentParseResult, verbose VerboseLevel, mediaMaxMb int) []ReplyPayload {
	var out []ReplyPayload
	for _, text := range parsed.Texts {
		prose, refs := SplitMedia(text)
		refs = FilterMediaBySize(refs, mediaMaxMb)
		for _, chunk := range chunkAsPayloads(prose, WebMaxChars) {
			if len(refs) > 0 {
				chunk.MediaURLs = refs
				if len(refs) == 1 {
					chunk.MediaURL = refs[0]
				}
				refs = nil // attach media once, to the first chunk only
			}
			out = append(out, chunk)
		}
	}
	if verbose == VerboseOn {
		for _, tr := range parsed.ToolResults {
			out = append(out, textPayload(tr))
		}
	}
	return out
}

func chunkAsPayloads(text string, maxLen int) []ReplyPayload {
	chunks := Chunk(text, maxLen)
	out := make([]ReplyPayload, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, textPayload(c))
	}
	return out
}

func signalSuffix(sig string) string {
	if sig == "" {
		return ""
	}
	return " (signal " + sig + ")"
}

// runResultError carries the raw RunResult alongside an error sentinel so
// the queue's fn/err contract can distinguish a real transport failure
// from a completed-but-unsuccessful run.
type runResultError struct {
	res RunResult
}

func (e *runResultError) Error() string {
	return "command did not complete successfully: exit=" + strconv.Itoa(e.res.ExitCode)
}

func wrapRunResult(res RunResult, err error) error {
	if err != nil {
		return err
	}
	if res.Killed || res.ExitCode != 0 || res.Signal != "" {
		return &runResultError{res: res}
	}
	return nil
}
