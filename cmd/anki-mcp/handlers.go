package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/danieldreier/mcp-anki/internal/ankiconnect"
	"github.com/danieldreier/mcp-anki/internal/cards"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

const jsonMIMEType = "application/json"

// searchURIPrefix addresses card searches; the final path segment is the keyword.
const searchURIPrefix = "anki://search/"

// searchResources returns the fixed set of card searches offered as resources.
func searchResources() []mcp.Resource {
	return []mcp.Resource{
		mcp.NewResource(searchURIPrefix+"deckcurrent", "Current deck",
			mcp.WithResourceDescription("Cards in the current Anki deck"),
			mcp.WithMIMEType(jsonMIMEType),
		),
		mcp.NewResource(searchURIPrefix+"isdue", "Due cards",
			mcp.WithResourceDescription("Cards in review and learning waiting to be studied"),
			mcp.WithMIMEType(jsonMIMEType),
		),
		mcp.NewResource(searchURIPrefix+"isnew", "New cards",
			mcp.WithResourceDescription("All unseen cards"),
			mcp.WithMIMEType(jsonMIMEType),
		),
	}
}

// searchTemplate lets clients read any keyword or Anki query as a resource.
// Reserved expansion lets the keyword carry query syntax such as "tag:x".
func searchTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(searchURIPrefix+"{+keyword}", "Card search",
		mcp.WithTemplateDescription("Cards matching a keyword (deck<name>, is<state>) or an Anki search query, ordered by due"),
		mcp.WithTemplateMIMEType(jsonMIMEType),
	)
}

// ResourceHandler serves card searches as resources.
type ResourceHandler struct {
	retriever *cards.Retriever
	logger    *zap.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(retriever *cards.Retriever, logger *zap.Logger) *ResourceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceHandler{retriever: retriever, logger: logger}
}

// keywordFromURI extracts the final path segment of a resource URI.
func keywordFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: malformed resource URI %q: %v", ErrInvalidRequest, uri, err)
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	keyword := segments[len(segments)-1]
	if keyword == "" {
		return "", fmt.Errorf("%w: resource URI %q has no path segment", ErrInvalidRequest, uri)
	}
	return keyword, nil
}

// ReadResource handles resources/read for searches.
func (h *ResourceHandler) ReadResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	logger := h.logger.With(zap.String("call_id", uuid.NewString()), zap.String("uri", uri))

	keyword, err := keywordFromURI(uri)
	if err != nil {
		logger.Error("Invalid resource URI", zap.Error(err))
		return nil, err
	}
	logger.Debug("Reading resource", zap.String("keyword", keyword))

	found, err := h.retriever.Retrieve(ctx, keyword)
	if err != nil {
		logger.Error("Error retrieving cards", zap.String("keyword", keyword), zap.Error(err))
		return nil, err
	}

	jsonBytes, err := json.MarshalIndent(found, "", "  ")
	if err != nil {
		logger.Error("Error marshaling cards", zap.Error(err))
		return nil, fmt.Errorf("error marshaling cards to JSON: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: jsonMIMEType,
			Text:     string(jsonBytes),
		},
	}, nil
}

// ToolHandler executes the card tools.
type ToolHandler struct {
	store     ankiconnect.Store
	retriever *cards.Retriever
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewToolHandler creates a ToolHandler.
func NewToolHandler(store ankiconnect.Store, retriever *cards.Retriever, logger *zap.Logger) *ToolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolHandler{
		store:     store,
		retriever: retriever,
		validate:  newValidator(),
		logger:    logger,
	}
}

// HandleTool adapts Call to the mcp-go tool handler signature.
func (h *ToolHandler) HandleTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID := uuid.NewString()
	name := request.Params.Name
	h.logger.Debug("Tool called", zap.String("call_id", callID), zap.String("tool", name))

	result, err := h.Call(ctx, name, request.Params.Arguments)
	if err != nil {
		h.logger.Warn("Tool failed", zap.String("call_id", callID), zap.String("tool", name), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Call decodes and runs a tool. Nothing reaches Anki unless the arguments
// decode and validate.
func (h *ToolHandler) Call(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	call, err := decodeCall(h.validate, name, args)
	if err != nil {
		return nil, err
	}

	switch call := call.(type) {
	case *updateCardsCall:
		return h.updateCards(ctx, call)
	case *addCardCall:
		return h.addCard(ctx, call)
	case *dueCardsCall:
		return h.cardList(ctx, "is:due", *call.Num)
	case *newCardsCall:
		return h.cardList(ctx, "is:new", *call.Num)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.toolName())
	}
}

// updateCards submits all answers in one batch. Any rejected answer fails the
// whole call, even though the accepted ones have already been applied.
func (h *ToolHandler) updateCards(ctx context.Context, call *updateCardsCall) (*mcp.CallToolResult, error) {
	answers := make([]ankiconnect.Answer, len(call.Answers))
	for i, a := range call.Answers {
		answers[i] = ankiconnect.Answer{CardID: a.CardID, Ease: int(a.Ease)}
		h.logger.Debug("Answering card", zap.Int64("card_id", a.CardID), zap.Stringer("ease", a.Ease))
	}

	results, err := h.store.AnswerCards(ctx, answers)
	if err != nil {
		return nil, err
	}
	if len(results) != len(answers) {
		return nil, fmt.Errorf("%w: got %d results for %d answers", ankiconnect.ErrResultCount, len(results), len(answers))
	}

	var updated, failed []int64
	for i, ok := range results {
		if ok {
			updated = append(updated, answers[i].CardID)
		} else {
			failed = append(failed, answers[i].CardID)
		}
	}
	if len(failed) > 0 {
		return nil, &PartialFailureError{CardIDs: failed}
	}

	return mcp.NewToolResultText("Updated cards " + joinIDs(updated)), nil
}

// addCard creates a Basic note in the Default deck and reports the id of the
// card Anki generated for it.
func (h *ToolHandler) addCard(ctx context.Context, call *addCardCall) (*mcp.CallToolResult, error) {
	noteID, err := h.store.AddNote(ctx, ankiconnect.Note{
		DeckName:  defaultDeck,
		ModelName: defaultModel,
		Fields: map[string]string{
			"Front": call.Front,
			"Back":  call.Back,
		},
	})
	if err != nil {
		return nil, err
	}

	ids, err := h.store.FindCards(ctx, fmt.Sprintf("nid:%d", noteID))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w %d", ankiconnect.ErrNoCardForNote, noteID)
	}

	h.logger.Debug("Card created", zap.Int64("note_id", noteID), zap.Int64("card_id", ids[0]))
	return mcp.NewToolResultText(fmt.Sprintf("Created card with id %d", ids[0])), nil
}

// cardList returns the first num cards for a keyword as JSON.
func (h *ToolHandler) cardList(ctx context.Context, keyword string, num int) (*mcp.CallToolResult, error) {
	found, err := h.retriever.Retrieve(ctx, keyword)
	if err != nil {
		return nil, err
	}

	jsonBytes, err := json.MarshalIndent(truncate(found, num), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling cards to JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// truncate returns at most n cards; n <= 0 yields none.
func truncate(list []cards.Card, n int) []cards.Card {
	switch {
	case n <= 0:
		return []cards.Card{}
	case n > len(list):
		return list
	}
	return list[:n]
}
