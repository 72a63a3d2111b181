package mcp

import (
	"context"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "kioku"
	serverVersion = "0.1.0"

	toolRecallMemories = "recall_memories"
)

// Recaller finds memories of a user relevant to a query
type Recaller interface {
	Recall(ctx context.Context, userID model.UserID, query string, limit int) ([]memory.ScoredMemory, error)
}

type recallMemoriesParams struct {
	Query string `json:"query" jsonschema:"Text to find related memories for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of memories to return. Capped by the server's max-context-items setting (default 3)"`
}

// Server exposes a user's memories as MCP tools
type Server struct {
	recaller Recaller
	userID   model.UserID
	server   *mcp.Server
}

func NewServer(recaller Recaller, userID model.UserID) *Server {
	s := &Server{
		recaller: recaller,
		userID:   userID,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolRecallMemories,
		Description: "Recall what is remembered about the user that relates to the query. Returns one memory per line, most relevant first. At most max-context-items memories (default 3) are returned regardless of limit.",
	}, s.recallMemories)

	return s
}

// RunStdio serves on stdin/stdout until the client disconnects or ctx is done
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

// Handler returns a streamable HTTP handler serving this server
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) recallMemories(ctx context.Context, req *mcp.CallToolRequest, params *recallMemoriesParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, nil, goerr.New("query is required")
	}

	scored, err := s.recaller.Recall(ctx, s.userID, params.Query, params.Limit)
	if err != nil {
		logging.From(ctx).Error("failed to recall memories", "error", err, "user_id", s.userID)
		return nil, nil, err
	}

	var text string
	if len(scored) == 0 {
		text = "No relevant memories found."
	} else {
		lines := make([]string, len(scored))
		for i, m := range scored {
			lines[i] = m.Record.Text
		}
		text = strings.Join(lines, "\n")
	}

	logging.From(ctx).Debug("recalled memories via MCP", "query", params.Query, "count", len(scored))

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}
