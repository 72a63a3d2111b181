package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/service/mcp"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func mcpCommand(cfg *config) *cli.Command {
	var addr string

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve memory recall as an MCP server (stdio by default)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "http",
				Usage:       "Listen address for streamable HTTP transport instead of stdio",
				Sources:     cli.EnvVars("KIOKU_MCP_HTTP_ADDR"),
				Destination: &addr,
			},
		},
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

			server := mcp.NewServer(session, userID)
			if addr == "" {
				return server.RunStdio(ctx)
			}

			logging.From(ctx).Info("serving MCP over HTTP", "addr", addr, "user_id", userID)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return goerr.Wrap(err, "MCP HTTP server failed", goerr.V("addr", addr))
			}
			return nil
		},
	}
}
