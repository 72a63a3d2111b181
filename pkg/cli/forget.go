package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/urfave/cli/v3"
)

func forgetCommand(cfg *config) *cli.Command {
	return &cli.Command{
		Name:  "forget",
		Usage: "Delete all memories and history of the user",
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

			if err := repository.NewStore(repo).Delete(ctx, userID); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Forgot everything about %s\n", userID)
			return nil
		},
	}
}
