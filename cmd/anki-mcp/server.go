package main

import (
	"github.com/danieldreier/mcp-anki/internal/ankiconnect"
	"github.com/danieldreier/mcp-anki/internal/cards"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const serverInstructions = `
This server gives access to the user's Anki collection.

Resources (JSON arrays of cards with cardId, question, answer and due, most urgent first):
  - anki://search/deckcurrent: cards in the current deck
  - anki://search/isdue: cards due for review
  - anki://search/isnew: new, unseen cards
  - anki://search/{+keyword}: any keyword (deck<name>, is<state>) or Anki search query
    such as anki://search/tag:verbs or anki://search/deck:Spanish

When quizzing the user, show only the question first, wait for their answer,
then reveal the answer and record it with update_cards using ease
1 (again), 2 (hard), 3 (good) or 4 (easy).
Use add_card to create new cards; front and back must be HTML.
`

// newServer builds the MCP server with all resources and tools registered.
func newServer(store ankiconnect.Store, logger *zap.Logger, version string) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"Anki MCP",
		version,
		server.WithInstructions(serverInstructions),
		server.WithResourceCapabilities(false, false),
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	retriever := cards.NewRetriever(store, logger.Named("cards"))
	resources := NewResourceHandler(retriever, logger.Named("resources"))
	tools := NewToolHandler(store, retriever, logger.Named("tools"))

	for _, resource := range searchResources() {
		s.AddResource(resource, resources.ReadResource)
	}
	s.AddResourceTemplate(searchTemplate(), resources.ReadResource)

	for _, tool := range toolCatalog() {
		s.AddTool(tool, tools.HandleTool)
	}

	return s
}
