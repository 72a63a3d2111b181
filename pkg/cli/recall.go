package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func recallCommand(cfg *config) *cli.Command {
	var limit int64

	return &cli.Command{
		Name:      "recall",
		Usage:     "Show memories relevant to a query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of memories (capped by max-context-items)",
				Destination: &limit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query is required")
			}

			userID, err := cfg.user()
			if err != nil {
				return err
			}

			session, closeSession, err := cfg.newSession(ctx)
			if err != nil {
				return err
			}
			defer closeSession()

			scored, err := session.Recall(ctx, userID, query, int(limit))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(scored) == 0 {
				fmt.Fprintln(w, "No relevant memories found.")
				return nil
			}
			for _, m := range scored {
				fmt.Fprintf(w, "%.3f  %s\n", m.Similarity, m.Record.Text)
			}
			return nil
		},
	}
}
