package cli

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	var cfg config

	cmd := &cli.Command{
		Name:  "kioku",
		Usage: "Conversational agent with long-lived memory",
		Flags: allFlags(&cfg),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return logging.With(ctx, cfg.newLogger(c.Root().ErrWriter)), nil
		},
		Commands: []*cli.Command{
			chatCommand(&cfg),
			recallCommand(&cfg),
			showCommand(&cfg),
			forgetCommand(&cfg),
			mcpCommand(&cfg),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.From(ctx).Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
