package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/urfave/cli/v3"
)

func showCommand(cfg *config) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show stored memories of the user",
		Action: func(ctx context.Context, c *cli.Command) error {
			userID, err := cfg.user()
			if err != nil {
				return err
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			printSnapshot(c.Root().Writer, repository.NewStore(repo).Load(ctx, userID))
			return nil
		},
	}
}

func printSnapshot(w io.Writer, snapshot *model.MemorySnapshot) {
	fmt.Fprintf(w, "Flash memories: %d\n", len(snapshot.FlashMemory))
	for _, r := range snapshot.FlashMemory {
		printRecord(w, r)
	}

	fmt.Fprintf(w, "Long-term memories: %d\n", len(snapshot.LongTermMemory))
	for _, r := range snapshot.LongTermMemory {
		printRecord(w, r)
	}

	fmt.Fprintf(w, "Conversation events: %d (user turns: %d)\n",
		len(snapshot.ConversationHistory),
		model.CountRole(snapshot.ConversationHistory, model.RoleUser))
}

func printRecord(w io.Writer, r *model.MemoryRecord) {
	line := "  - " + r.Text
	if len(r.Topics) > 0 {
		line += " [" + strings.Join(r.Topics, ", ") + "]"
	}
	if !r.CreatedAt.IsZero() {
		line += " (" + r.CreatedAt.Local().Format("2006-01-02 15:04") + ")"
	}
	fmt.Fprintln(w, line)
}
