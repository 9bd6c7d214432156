package main

import (
	"github.com/spf13/cobra"

	"github.com/sanonone/kektorflow/internal/logging"
	mcpserver "github.com/sanonone/kektorflow/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: `Starts a Model Context Protocol server over stdin/stdout exposing the
retrieve_context, text_to_speech and add_to_cluster tools. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := logging.New("mcp")
	svc := mcpserver.NewService(a.apis, a.store, a.retrieval, a.speech, logger)
	logger.Info("starting kektorflow MCP server over stdio")
	return mcpserver.NewMCPServer(svc).Run(cmd.Context(), &sdkmcp.StdioTransport{})
}
