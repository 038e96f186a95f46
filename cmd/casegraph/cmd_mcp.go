package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	casemcp "github.com/ajitpratap0/casegraph/internal/mcp"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
	"github.com/ajitpratap0/casegraph/internal/review"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  ingest_document        extract and persist artifacts from one document
  list_entities          entities by type or name
  timeline               chronological events
  alibi_inconsistencies  contradictions between alibi versions and events
  review_queue           items for investigator review
  case_stats             artifact counts

If the store is unavailable at startup the server still starts;
individual tool calls return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			var (
				p   *pipeline.Pipeline
				rev *review.Manager
			)
			st, storeErr := newStore(cmd.Context(), logger)
			if storeErr != nil {
				logger.Error("mcp: failed to connect to store; tool calls requiring storage will fail",
					"error", storeErr)
				st = nil
			} else {
				defer func() { _ = st.Close() }()
				var err error
				if p, err = newPipeline(st, logger); err != nil {
					return err
				}
				rev = newReviewer(st, logger)
			}

			srv := casemcp.NewServer(st, p, rev, logger)

			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: casegraph MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
