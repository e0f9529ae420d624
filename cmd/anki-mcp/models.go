// Package main provides implementation for the Anki MCP service.
package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danieldreier/mcp-anki/internal/ease"
)

// ErrInvalidRequest is returned for malformed protocol input: a resource URI
// without a path segment, missing tool arguments, or arguments that fail
// validation.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnknownTool is returned when a tool name matches no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// PartialFailureError reports the cards Anki refused to answer in an
// update_cards call. Answers for the other cards were applied.
type PartialFailureError struct {
	CardIDs []int64
}

func (e *PartialFailureError) Error() string {
	return "failed to update cards " + joinIDs(e.CardIDs)
}

// joinIDs formats ids as a comma-separated list.
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// toolCall is a decoded, validated tool invocation. The set of
// implementations is closed: one per registered tool.
type toolCall interface {
	toolName() string
}

// answerArgs is a single answer in an update_cards call.
type answerArgs struct {
	CardID int64     `mapstructure:"cardId" validate:"required"`
	Ease   ease.Ease `mapstructure:"ease" validate:"ease"`
}

type updateCardsCall struct {
	Answers []answerArgs `mapstructure:"answers" validate:"required,min=1,dive"`
}

type addCardCall struct {
	Front string `mapstructure:"front" validate:"required"`
	Back  string `mapstructure:"back" validate:"required"`
}

// cardCountArgs only requires num to be present; out of range values truncate.
type cardCountArgs struct {
	Num *int `mapstructure:"num" validate:"required"`
}

type dueCardsCall cardCountArgs
type newCardsCall cardCountArgs

func (*updateCardsCall) toolName() string { return toolUpdateCards }
func (*addCardCall) toolName() string     { return toolAddCard }
func (*dueCardsCall) toolName() string    { return toolGetDueCards }
func (*newCardsCall) toolName() string    { return toolGetNewCards }

// validationError wraps a validation failure so callers can match ErrInvalidRequest.
func validationError(tool string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidRequest, tool, err)
}
