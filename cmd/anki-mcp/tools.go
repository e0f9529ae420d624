package main

import (
	"fmt"

	"github.com/danieldreier/mcp-anki/internal/ease"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	toolUpdateCards = "update_cards"
	toolAddCard     = "add_card"
	toolGetDueCards = "get_due_cards"
	toolGetNewCards = "get_new_cards"
)

// Notes created by add_card always go to this deck with this note type.
const (
	defaultDeck  = "Default"
	defaultModel = "Basic"
)

// toolCatalog returns the tools exposed by the server.
func toolCatalog() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(toolUpdateCards,
			mcp.WithDescription(
				"After the user answers cards you've quizzed them on, use this tool to mark them answered and update their ease. "+
					"Ease is 1 (again), 2 (hard), 3 (good) or 4 (easy).",
			),
			mcp.WithArray("answers",
				mcp.Required(),
				mcp.Description("Answers to submit, one per reviewed card"),
				mcp.Items(map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"cardId": map[string]interface{}{
							"type":        "number",
							"description": "Id of the card to answer",
						},
						"ease": map[string]interface{}{
							"type":        "number",
							"description": "Ease of the card between 1 (Again) and 4 (Easy)",
							"minimum":     int(ease.Again),
							"maximum":     int(ease.Easy),
						},
					},
					"required": []string{"cardId", "ease"},
				}),
			),
		),
		mcp.NewTool(toolAddCard,
			mcp.WithDescription(
				"Create a new flashcard in Anki for the user. "+
					"Must use HTML formatting only. "+
					"IMPORTANT FORMATTING NOTES: "+
					"1. Use <br> for new lines, never raw newlines. "+
					"2. Use <pre><code> for code blocks. "+
					"3. Use <b> or <i> for emphasis, not markdown. "+
					"The card is added to the Default deck using the Basic note type.",
			),
			mcp.WithString("front",
				mcp.Required(),
				mcp.Description("The front of the card. Must use HTML formatting only."),
			),
			mcp.WithString("back",
				mcp.Required(),
				mcp.Description("The back of the card. Must use HTML formatting only."),
			),
		),
		mcp.NewTool(toolGetDueCards,
			mcp.WithDescription("Returns a given number (num) of cards due for review, most urgent first."),
			mcp.WithNumber("num",
				mcp.Required(),
				mcp.Description("Number of due cards to get"),
			),
		),
		mcp.NewTool(toolGetNewCards,
			mcp.WithDescription("Returns a given number (num) of new and unseen cards."),
			mcp.WithNumber("num",
				mcp.Required(),
				mcp.Description("Number of new cards to get"),
			),
		),
	}
}

// newToolCall returns an empty call for a tool name.
func newToolCall(name string) (toolCall, bool) {
	switch name {
	case toolUpdateCards:
		return &updateCardsCall{}, true
	case toolAddCard:
		return &addCardCall{}, true
	case toolGetDueCards:
		return &dueCardsCall{}, true
	case toolGetNewCards:
		return &newCardsCall{}, true
	}
	return nil, false
}

// newValidator returns a validator that knows the "ease" tag.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("ease", func(fl validator.FieldLevel) bool {
		return ease.Ease(fl.Field().Int()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("register ease validation: %v", err))
	}
	return v
}

// decodeCall turns raw tool arguments into a typed, validated call.
func decodeCall(v *validator.Validate, name string, args map[string]interface{}) (toolCall, error) {
	if args == nil {
		return nil, fmt.Errorf("%w: %s: no arguments provided", ErrInvalidRequest, name)
	}

	call, ok := newToolCall(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           call,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for %s: %w", name, err)
	}
	if err := decoder.Decode(args); err != nil {
		return nil, validationError(name, err)
	}
	if err := v.Struct(call); err != nil {
		return nil, validationError(name, err)
	}
	return call, nil
}
