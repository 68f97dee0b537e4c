// Command studio is a terminal UI for the AnimAI Studio server. Each prompt
// typed at the input line is sent to POST /generate; replies and errors are
// saved to a chat session so they show up in the history API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tbourn/animai-studio/internal/studio"
	"github.com/tbourn/animai-studio/internal/sysutil"
)

const version = "0.1.0"

type options struct {
	server    string
	apiBase   string
	user      string
	token     string
	chatID    string
	noHistory bool
	timeout   time.Duration
	logLevel  string
	logFile   string
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		printError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := options{
		server:    sysutil.FirstNonEmpty(os.Getenv("STUDIO_SERVER_URL"), "http://localhost:8080"),
		apiBase:   sysutil.FirstNonEmpty(os.Getenv("API_BASE_PATH"), "/api/v1"),
		user:      os.Getenv("STUDIO_USER_ID"),
		token:     os.Getenv("STUDIO_TOKEN"),
		noHistory: sysutil.IsTruthy(os.Getenv("STUDIO_NO_HISTORY")),
		timeout:   studio.DefaultTimeout,
		logLevel:  sysutil.FirstNonEmpty(os.Getenv("LOG_LEVEL"), "warn"),
	}

	cmd := &cobra.Command{
		Use:     "studio",
		Short:   "Generate animations from the terminal",
		Version: version,
		Long: `Interactive client for the AnimAI Studio server.

Type a prompt and press Enter to generate an animation. Commands:
  /gallery   show recent generations
  /new       start a new chat session
  /quit      exit (or Esc, Ctrl+C)`,
		Example: `  # Talk to a local server
  $ studio

  # Continue an existing chat as a given user
  $ studio --user alice --chat 5d0c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.server) == "" {
				return errors.New("--server is required")
			}
			// The TUI owns the terminal, so diagnostics go to a file or nowhere.
			logOut := io.Discard
			if opts.logFile != "" {
				f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			sysutil.InitLogger(sysutil.LogOptions{Level: opts.logLevel, Out: logOut})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, in, out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.server, "server", "s", opts.server, "studio server URL (STUDIO_SERVER_URL)")
	f.StringVar(&opts.apiBase, "api-base", opts.apiBase, "chat API base path")
	f.StringVarP(&opts.user, "user", "u", opts.user, "user id sent as X-User-ID (STUDIO_USER_ID)")
	f.StringVar(&opts.token, "token", opts.token, "bearer token, overrides --user (STUDIO_TOKEN)")
	f.StringVar(&opts.chatID, "chat", "", "existing chat id to continue")
	f.BoolVar(&opts.noHistory, "no-history", opts.noHistory, "do not save the conversation (STUDIO_NO_HISTORY)")
	f.DurationVar(&opts.timeout, "timeout", opts.timeout, "per-generation timeout")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level for diagnostics")
	f.StringVar(&opts.logFile, "log-file", "", "append diagnostics to this file")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	client := studio.NewClient(studio.ClientOptions{
		BaseURL: opts.server,
		APIBase: opts.apiBase,
		UserID:  opts.user,
		Token:   opts.token,
		Timeout: opts.timeout,
	})

	m, err := openModel(ctx, client, opts)
	if err != nil {
		return err
	}
	return runProgram(ctx, m, tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen())
}

// openModel resolves the chat the conversation is saved to and returns a
// model showing its history. An empty chat id means history is off.
func openModel(ctx context.Context, client *studio.Client, opts options) (chatModel, error) {
	if opts.noHistory {
		return newModel(ctx, client, opts, ""), nil
	}
	if opts.chatID != "" {
		msgs, err := client.ListMessages(ctx, opts.chatID, 100)
		if err != nil {
			return chatModel{}, fmt.Errorf("load chat %s: %w", opts.chatID, err)
		}
		m := newModel(ctx, client, opts, opts.chatID)
		m.replay(msgs)
		return m, nil
	}
	chat, err := client.CreateChat(ctx, "")
	if err != nil {
		m := newModel(ctx, client, opts, "")
		m.appendLine(warningStyle.Render("⚠ chat history unavailable: " + err.Error()))
		return m, nil
	}
	return newModel(ctx, client, opts, chat.ID), nil
}
