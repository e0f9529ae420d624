// Package ankiconnect is a client for the AnkiConnect add-on, which exposes
// a running Anki collection as a JSON-over-HTTP API.
package ankiconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultURL is where AnkiConnect listens unless configured otherwise.
const DefaultURL = "http://localhost:8765"

// apiVersion is the AnkiConnect protocol version this client speaks.
const apiVersion = 6

// CardInfo is the subset of a cardsInfo record this client decodes.
type CardInfo struct {
	CardID   int64  `json:"cardId"`
	NoteID   int64  `json:"note"`
	DeckName string `json:"deckName"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Due      int64  `json:"due"`
}

// Answer is a single review answer submitted through answerCards.
type Answer struct {
	CardID int64 `json:"cardId"`
	Ease   int   `json:"ease"`
}

// Note is a note to be created through addNote.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
}

// ErrNoCardForNote is returned when Anki reports no card for a note it just created.
var ErrNoCardForNote = errors.New("no card found for note")

// ErrResultCount is returned when answerCards does not report exactly one
// result per submitted answer.
var ErrResultCount = errors.New("answerCards result count does not match answers")

// APIError is an error reported by AnkiConnect in its response envelope.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ankiconnect %s: %s", e.Action, e.Message)
}

// Store is the set of collection operations the MCP server relies on.
type Store interface {
	// FindCards returns the ids of all cards matching an Anki search query.
	FindCards(ctx context.Context, query string) ([]int64, error)
	// CardsInfo returns card records in the same order as ids.
	CardsInfo(ctx context.Context, ids []int64) ([]CardInfo, error)
	// AnswerCards submits answers in one batch and returns one result per
	// answer, in order. Any other result count is an error.
	AnswerCards(ctx context.Context, answers []Answer) ([]bool, error)
	// AddNote creates a note and returns its id.
	AddNote(ctx context.Context, note Note) (int64, error)
}

// Client implements Store against a live AnkiConnect endpoint.
type Client struct {
	url    string
	key    string
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithKey sets the API key AnkiConnect requires when apiKey is configured in the add-on.
func WithKey(key string) Option {
	return func(c *Client) { c.key = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for the given endpoint. An empty url selects DefaultURL.
func NewClient(url string, opts ...Option) *Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	c := &Client{
		url:    url,
		http:   &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Debug("AnkiConnect client created", zap.String("url", c.url))
	return c
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.url
}

type request struct {
	Action  string      `json:"action"`
	Version int         `json:"version"`
	Params  interface{} `json:"params,omitempty"`
	Key     string      `json:"key,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect action and decodes its result into out.
func (c *Client) invoke(ctx context.Context, action string, params interface{}, out interface{}) error {
	body, err := json.Marshal(request{
		Action:  action,
		Version: apiVersion,
		Params:  params,
		Key:     c.key,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("AnkiConnect request", zap.String("action", action))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ankiconnect %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ankiconnect %s: unexpected status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if envelope.Error != nil {
		return &APIError{Action: action, Message: *envelope.Error}
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", action, err)
	}
	return nil
}

// FindCards implements Store.
func (c *Client) FindCards(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	if err := c.invoke(ctx, "findCards", map[string]interface{}{"query": query}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CardsInfo implements Store.
func (c *Client) CardsInfo(ctx context.Context, ids []int64) ([]CardInfo, error) {
	var infos []CardInfo
	if err := c.invoke(ctx, "cardsInfo", map[string]interface{}{"cards": ids}, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// AnswerCards implements Store.
func (c *Client) AnswerCards(ctx context.Context, answers []Answer) ([]bool, error) {
	var results []bool
	if err := c.invoke(ctx, "answerCards", map[string]interface{}{"answers": answers}, &results); err != nil {
		return nil, err
	}
	if len(results) != len(answers) {
		return nil, fmt.Errorf("%w: got %d results for %d answers", ErrResultCount, len(results), len(answers))
	}
	return results, nil
}

// AddNote implements Store.
func (c *Client) AddNote(ctx context.Context, note Note) (int64, error) {
	var id *int64
	if err := c.invoke(ctx, "addNote", map[string]interface{}{"note": note}, &id); err != nil {
		return 0, err
	}
	if id == nil {
		return 0, &APIError{Action: "addNote", Message: "note was not created"}
	}
	return *id, nil
}
