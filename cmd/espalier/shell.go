package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/espalier-ai/espalier"
	"github.com/espalier-ai/espalier/internal/logging"
	"github.com/espalier-ai/espalier/pkg/adapters/rest"
	"github.com/espalier-ai/espalier/pkg/domain"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Try out a form interactively",
	Long: `Drives one slot-filling form end to end against an in-memory tracker.
Plain input fills the requested slot as text; "name=value" tokens are
treated as recognized entities. Type /restart to interrupt the form.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runShell(cmd); err != nil {
			fmt.Printf("Shell error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	shellCmd.Flags().String("form", "", "Name of the form to drive")
	shellCmd.Flags().String("sender", "", "Sender id (defaults to a random id)")
	shellCmd.MarkFlagRequired("form")
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command) error {
	domainPath, _ := cmd.Flags().GetString("domain")
	formName, _ := cmd.Flags().GetString("form")
	sender, _ := cmd.Flags().GetString("sender")
	if sender == "" {
		sender = uuid.NewString()
	}

	d, err := domain.LoadFile(domainPath)
	if err != nil {
		return err
	}
	if !d.IsForm(formName) {
		return fmt.Errorf("domain declares no form %q", formName)
	}

	var cfg serveConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	opts := []espalier.Option{espalier.WithLogger(logging.New(slog.LevelWarn))}
	if cfg.ActionEndpoint != "" {
		opts = append(opts, espalier.WithActionServer(rest.Config{
			URL:     cfg.ActionEndpoint,
			Token:   cfg.ActionToken,
			Timeout: cfg.ActionTimeout,
		}))
	}
	engine := espalier.New(opts...)

	render := newShellRenderer()
	profile := termenv.ColorProfile()
	prompt := termenv.String("you> ").Foreground(profile.Color("#818cf8")).Bold()

	tracker := domain.NewTracker(sender, d)
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		result, err := engine.RunAction(ctx, formName, tracker, d)
		if err != nil {
			var rej *domain.RejectionError
			if !errors.As(err, &rej) {
				return err
			}
			tracker.Apply(rej.Events...)
			fmt.Println(render("_The form could not use that input; it will ask again._"))
		} else {
			tracker.Apply(result.Events...)
			tracker.Apply(domain.NewActionExecuted(formName))
			for _, evt := range result.Events {
				if bot, ok := evt.(domain.BotUttered); ok {
					fmt.Print(render(bot.Text))
				}
			}
		}

		if tracker.ActiveLoop == nil {
			printSummary(d.Forms[formName], tracker)
			return nil
		}

		fmt.Print(prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		tracker.Apply(domain.NewUserUttered(parseMessage(scanner.Text())))
	}
}

// parseMessage turns a typed line into a message: "name=value" tokens
// become entities, /restart becomes the restart intent.
func parseMessage(line string) domain.Message {
	line = strings.TrimSpace(line)
	if line == "/restart" {
		return domain.Message{Text: line, Intent: domain.IntentRestart}
	}
	msg := domain.Message{Text: line}
	for _, token := range strings.Fields(line) {
		if name, value, ok := strings.Cut(token, "="); ok && name != "" {
			msg.Entities = append(msg.Entities, domain.Entity{Name: name, Value: value})
		}
	}
	return msg
}

// newShellRenderer renders bot messages as markdown when stdout is a
// terminal, and passes them through verbatim otherwise.
func newShellRenderer() func(string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(s string) string { return s + "\n" }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return func(s string) string { return s + "\n" }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s + "\n"
		}
		return out
	}
}

func printSummary(form domain.Form, tracker *domain.Tracker) {
	fmt.Println("Form complete:")
	for _, slot := range form.RequiredSlots {
		value, _ := tracker.Slot(slot)
		fmt.Printf("  %s: %v\n", slot, value)
	}
}
