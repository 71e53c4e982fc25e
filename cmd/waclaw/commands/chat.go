package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jholhewres/waclaw/pkg/waclaw/config"
	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// newChatCmd builds the `waclaw chat` command: a local REPL that feeds
// typed lines through the reply engine exactly like an inbound WhatsApp
// message, for exercising directives and agent wiring without a live
// phone link.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the reply engine from the terminal",
		Long: `Feed one message, or an interactive session of messages, through the
reply engine as if sent from a fixed test sender. Useful for checking
directive handling and agent wiring before connecting a real channel.

Examples:
  waclaw chat "/think:high what's on the agenda?"
  waclaw chat   # interactive REPL`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
	cmd.Flags().String("from", "chat@local", "sender identity used for session scoping")
	return cmd
}

const chatReplyTimeout = 2 * time.Minute

func runChat(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	from, _ := cmd.Flags().GetString("from")

	doc, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := reply.NewSessionStore("", logger) // in-memory only, no session file for a REPL run
	queue := reply.NewCommandQueue()
	engine := reply.NewEngine(doc.ReplyConfig(), store, queue, logger)

	if len(args) > 0 {
		return chatTurn(engine, from, args[0])
	}

	return chatREPL(engine, from)
}

func chatTurn(engine *reply.Engine, from, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), chatReplyTimeout)
	defer cancel()

	res := engine.Reply(ctx, reply.Message{From: from, Body: body, ReceivedAt: time.Now()})
	for _, p := range res.Payloads {
		fmt.Println(p.Text)
		for _, m := range p.MediaURLs {
			fmt.Println("  [media]", m)
		}
	}
	return nil
}

func chatREPL(engine *reply.Engine, from string) error {
	rl, err := readline.New("waclaw> ")
	if err != nil {
		return fmt.Errorf("chat: opening terminal: %w", err)
	}
	defer rl.Close()

	fmt.Println("waclaw chat — type a message and press enter, Ctrl+D to quit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if err := chatTurn(engine, from, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}
