package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/waclaw/pkg/waclaw/config"
	"github.com/jholhewres/waclaw/pkg/waclaw/reply"
)

// newConfigCmd builds the `waclaw config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the waclaw configuration file",
		Long: `Manage the waclaw configuration file.

Examples:
  waclaw config init
  waclaw config validate`,
	}

	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file without starting the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			doc, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s is valid.\n", path)
			fmt.Printf("  reply mode:   %s\n", doc.Inbound.Reply.Mode)
			fmt.Printf("  allow from:   %s\n", strings.Join(doc.Inbound.AllowFrom, ", "))
			fmt.Printf("  whatsapp:     %v\n", doc.WhatsApp.SessionDir != "")
			fmt.Printf("  telephony:    %v\n", doc.Telephony.Address != "" || doc.Telephony.PollIntervalSeconds > 0)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively build a config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			return runConfigInit(path)
		},
	}
}

// runConfigInit walks the operator through the open questions a reply
// deployment must answer — who may message it, how it replies, and which
// channels it listens on — and writes the result as strict YAML.
func runConfigInit(path string) error {
	var (
		allowFrom  string
		replyMode  = string(reply.ReplyModeText)
		replyText  = "Thanks for your message, I'll get back to you soon."
		agentKind  = string(reply.AgentClaude)
		command    = "claude -p"
		perSender  = true
		enableWA   bool
		sessionDir = "./session"
		dbPath     = "./session/store.db"
		respondDMs = true
		respondGrp bool
		enableTel  bool
		telAddr    = ":8086"
		telBaseURL string
		discordURL string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Allow-list").
				Description("Comma-separated senders permitted to trigger a reply. Use * for everyone.").
				Value(&allowFrom),
			huh.NewConfirm().
				Title("Scope sessions per sender?").
				Value(&perSender),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Reply mode").
				Options(
					huh.NewOption("Static text", string(reply.ReplyModeText)),
					huh.NewOption("External agent command", string(reply.ReplyModeCommand)),
				).
				Value(&replyMode),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Reply text").
				Value(&replyText),
		).WithHideFunc(func() bool { return replyMode != string(reply.ReplyModeText) }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Agent").
				Options(
					huh.NewOption("claude", string(reply.AgentClaude)),
					huh.NewOption("codex", string(reply.AgentCodex)),
					huh.NewOption("gemini", string(reply.AgentGemini)),
					huh.NewOption("opencode", string(reply.AgentOpencode)),
					huh.NewOption("pi", string(reply.AgentPi)),
				).
				Value(&agentKind),
			huh.NewInput().
				Title("Command template").
				Value(&command),
		).WithHideFunc(func() bool { return replyMode != string(reply.ReplyModeCommand) }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the WhatsApp Web channel?").
				Value(&enableWA),
		),
		huh.NewGroup(
			huh.NewInput().Title("Session directory").Value(&sessionDir),
			huh.NewInput().Title("SQLite store path").Value(&dbPath),
			huh.NewConfirm().Title("Respond in direct messages?").Value(&respondDMs),
			huh.NewConfirm().Title("Respond in groups?").Value(&respondGrp),
		).WithHideFunc(func() bool { return !enableWA }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the telephony webhook/polling channel?").
				Value(&enableTel),
		),
		huh.NewGroup(
			huh.NewInput().Title("Webhook listen address").Value(&telAddr),
			huh.NewInput().Title("Provider API base URL").Value(&telBaseURL),
		).WithHideFunc(func() bool { return !enableTel }),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord ops webhook (optional)").
				Value(&discordURL),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("config init: %w", err)
	}

	var doc config.Document
	doc.Inbound.AllowFrom = splitAllowFrom(allowFrom)
	doc.Inbound.EchoSuppression = reply.EchoSuppressionStripped
	doc.Inbound.Reply.Mode = reply.ReplyMode(replyMode)
	doc.Inbound.Reply.Text = replyText
	doc.Inbound.Reply.Command = command
	doc.Inbound.Reply.Agent.Kind = reply.AgentKind(agentKind)
	doc.Inbound.Reply.Session.PerSender = perSender
	doc.Inbound.Reply.Session.IdleMinutes = 120
	doc.Inbound.Reply.Session.StorePath = "./session/sessions.json"
	doc.Inbound.Reply.TimeoutSeconds = 60

	if enableWA {
		doc.WhatsApp.SessionDir = sessionDir
		doc.WhatsApp.DatabasePath = dbPath
		doc.WhatsApp.RespondToDMs = respondDMs
		doc.WhatsApp.RespondToGroups = respondGrp
		doc.WhatsApp.AutoRead = true
		doc.WhatsApp.MediaDir = "./media"
		doc.WhatsApp.MaxMediaSizeMB = 16
		doc.WhatsApp.Reconnect = config.ReconnectSection{InitialMs: 1000, MaxMs: 60_000, Factor: 2, Jitter: 0.2}
	}

	if enableTel {
		doc.Telephony.Address = telAddr
		doc.Telephony.BaseURL = telBaseURL
		doc.Telephony.WebhookPath = "/webhooks/telephony"
		doc.Telephony.SendPath = "/messages"
		doc.Telephony.PollPath = "/messages/inbound"
		doc.Telephony.AuthTokenEnv = "WACLAW_TELEPHONY_TOKEN"
	}

	doc.Ops.DiscordWebhookURL = discordURL
	doc.Secrets.KeyringService = "waclaw"

	if _, err := os.Stat(path); err == nil {
		overwrite := false
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
			Value(&overwrite)
		if err := confirm.Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("config init cancelled, existing file kept.")
			return nil
		}
	}

	if err := saveDocument(doc, path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\n%s written.\n", path)
	fmt.Println("Next: waclaw serve")
	return nil
}

func splitAllowFrom(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

// saveDocument writes doc as strict YAML with file permissions narrow
// enough that secrets resolved at runtime (never stored here) would stay
// private even if they were.
func saveDocument(doc config.Document, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
