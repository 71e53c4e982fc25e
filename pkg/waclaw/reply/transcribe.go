package reply

import (
	"context"
	"strings"
)

// TranscribeOptions configures the audio transcription collaborator
// (spec §6, "Transcription CLI").
type TranscribeOptions struct {
	// Command is templated with {{MediaPath}} via the template engine.
	Command        string
	TimeoutSeconds int
	Cwd            string
}

// TranscribeAudio templates Command against mediaPath and runs it through
// the process runner, returning stdout trimmed as the transcript. It
// reuses the process runner rather than a bespoke exec call, per the
// design note on scoped child-process acquisition.
func TranscribeAudio(ctx context.Context, mediaPath string, opts TranscribeOptions) (string, error) {
	ctxTemplate := TemplateContext{MediaPath: mediaPath}
	rendered := ApplyTemplate(opts.Command, ctxTemplate)

	argv := strings.Fields(rendered)
	if len(argv) == 0 {
		return "", &runError{msg: "transcribeAudio.command is empty after templating"}
	}

	timeoutMs := opts.TimeoutSeconds * 1000
	if timeoutMs <= 0 {
		timeoutMs = 30_000
	}

	res, err := Run(ctx, argv, RunOptions{Cwd: opts.Cwd, TimeoutMs: timeoutMs})
	if err != nil {
		return "", err
	}
	if res.Killed || res.ExitCode != 0 {
		return "", &runError{msg: "transcription command failed"}
	}
	return strings.TrimSpace(res.Stdout), nil
}
