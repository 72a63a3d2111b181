package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/conversation"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/m-mizutani/kioku/pkg/utils/observe"
	"github.com/urfave/cli/v3"
)

const chatHelp = `Commands:
  /memory          show stored memories
  /prompt [stage]  show the last prompt (conversation, flash, long_term)
  /forget          delete all memories of the user
  exit             quit
`

func chatCommand(cfg *config) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk with the assistant interactively",
		Action: func(ctx context.Context, c *cli.Command) error {
			userID, err := cfg.user()
			if err != nil {
				return err
			}

			session, closeSession, err := cfg.newSession(ctx)
			if err != nil {
				return err
			}
			defer closeSession()

			obs := observe.New(logging.From(ctx))
			ctx = observe.With(ctx, obs)

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "You: ",
				HistoryFile:     historyFile(),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started as %s. Type 'exit' to quit, '/help' for commands.\n", userID)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				query := strings.TrimSpace(line)
				if query == "" {
					continue
				}
				if query == "exit" {
					break
				}

				if strings.HasPrefix(query, "/") {
					if err := runChatCommand(ctx, w, session, obs, userID, query); err != nil {
						fmt.Fprintf(w, "Error: %v\n", err)
					}
					continue
				}

				result, err := sendWithSpinner(ctx, w, session, userID, query)
				if err != nil {
					// the stored snapshot is unchanged, keep chatting
					logging.From(ctx).Error("turn failed", "error", err)
					fmt.Fprintf(w, "Error: %v\n", err)
					continue
				}

				fmt.Fprintf(w, "Assistant: %s\n", result.Reply)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}

func sendWithSpinner(ctx context.Context, w io.Writer, session *conversation.Session, userID model.UserID, query string) (*conversation.TurnResult, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " thinking..."
	s.Start()
	defer s.Stop()

	return session.Send(ctx, userID, query)
}

func runChatCommand(ctx context.Context, w io.Writer, session *conversation.Session, obs *observe.Observer, userID model.UserID, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/help":
		fmt.Fprint(w, chatHelp)

	case "/memory":
		printSnapshot(w, session.Snapshot(ctx, userID))

	case "/prompt":
		stage := conversation.StageConversation
		if len(fields) > 1 {
			stage = fields[1]
		}
		prompt, ok := obs.StagePrompt(stage)
		if !ok {
			fmt.Fprintf(w, "No %s prompt yet\n", stage)
			return nil
		}
		fmt.Fprintf(w, "--- %s prompt ---\n%s\n", stage, prompt)

	case "/forget":
		if err := session.Forget(ctx, userID); err != nil {
			return err
		}
		fmt.Fprintf(w, "Forgot everything about %s\n", userID)

	default:
		fmt.Fprintf(w, "Unknown command: %s\n%s", fields[0], chatHelp)
	}
	return nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kioku_history")
}
