package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"aumchat/internal/service/ai"
	"aumchat/internal/service/assistant"
	"aumchat/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Start an interactive conversation. Each line you enter is one turn;
the conversation is kept in memory until you exit with "exit", "quit" or EOF.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if logLevel == "" {
			cfg.Log.Level = "warn"
		}
		logger := newLogger(cfg.Log, true)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		responder, cleanup, err := newResponder(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		store := session.NewMemoryStore()
		defer store.Close()
		svc := assistant.NewService(store, responder, logger)

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		return runChat(ctx, svc, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr(), interactive)
	},
}

// runChat reads one turn per line from in until EOF or an exit command.
func runChat(ctx context.Context, svc *assistant.Service, in io.Reader, out, errOut io.Writer, interactive bool) error {
	se, err := svc.CreateSession(ctx, "")
	if err != nil {
		return err
	}
	ctx = ai.WithWarningHandler(ctx, func(msg string) {
		fmt.Fprintf(errOut, "warning: %s\n", msg)
	})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if interactive {
			fmt.Fprint(out, "you> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(text) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		exchange, err := svc.Submit(ctx, se.ID, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
			if !errors.Is(err, assistant.ErrGeneration) {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "aum> %s\n", exchange.AssistantMessage.Content)
	}
}
