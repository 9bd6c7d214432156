// Package mcp exposes the kektorflow tasks as Model Context Protocol tools.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

// Version is reported in the MCP handshake.
var Version = "dev"

func NewMCPServer(service *Service) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "kektorflow",
		Version: Version,
	}, &mcp.ServerOptions{Logger: service.logger})

	// Inputs reuse the task schemas, so defaults and validation match the
	// HTTP API.
	mcp.AddTool(s, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Find the pieces of the data cluster most relevant to a prompt. Embeddings of new items are generated first.",
		InputSchema: tasks.RetrievalSchema(),
	}, service.RetrieveContext)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "text_to_speech",
		Description: "Convert text to speech and return the path of the audio file.",
		InputSchema: tasks.SpeechSchema(),
	}, service.TextToSpeech)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "add_to_cluster",
		Description: "Add a message or a file to the data cluster so later retrievals can find it.",
	}, service.AddReference)

	return s
}
