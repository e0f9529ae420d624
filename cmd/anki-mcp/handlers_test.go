package main

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/danieldreier/mcp-anki/internal/ankiconnect"
	"github.com/danieldreier/mcp-anki/internal/ankiconnect/ankitest"
	"github.com/danieldreier/mcp-anki/internal/cards"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHandlers wires both handlers to a fresh in-memory store.
func setupTestHandlers(t *testing.T) (*ankitest.Store, *ResourceHandler, *ToolHandler) {
	t.Helper()
	store := ankitest.NewStore()
	retriever := cards.NewRetriever(store, nil)
	return store, NewResourceHandler(retriever, nil), NewToolHandler(store, retriever, nil)
}

// seedCards adds cards with the given due values under query, with ids 1..n.
func seedCards(store *ankitest.Store, query string, dues ...int64) {
	ids := make([]int64, len(dues))
	for i, due := range dues {
		id := int64(i + 1)
		ids[i] = id
		store.AddCard(ankiconnect.CardInfo{
			CardID:   id,
			Question: "<style>.card{}</style><div>Question&nbsp;" + string(rune('A'+i)) + "</div>",
			Answer:   "Question " + string(rune('A'+i)) + "<hr id=answer>Answer &amp; more",
			Due:      due,
		})
	}
	store.SetQuery(query, ids...)
}

// resultText returns the text of a single-content tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "Expected TextContent, got %T", result.Content[0])
	assert.Equal(t, "text", text.Type)
	return text.Text
}

// resultCards decodes the card list of a get_*_cards result.
func resultCards(t *testing.T, result *mcp.CallToolResult) []cards.Card {
	t.Helper()
	var got []cards.Card
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	return got
}

func answersArg(pairs ...int64) []interface{} {
	answers := make([]interface{}, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		answers = append(answers, map[string]interface{}{
			"cardId": float64(pairs[i]),
			"ease":   float64(pairs[i+1]),
		})
	}
	return answers
}

func TestSearchResources(t *testing.T) {
	resources := searchResources()
	require.Len(t, resources, 3)

	uris := make([]string, len(resources))
	for i, r := range resources {
		uris[i] = r.URI
		assert.Equal(t, "application/json", r.MIMEType)
		assert.NotEmpty(t, r.Name)
		assert.NotEmpty(t, r.Description)
	}
	assert.Equal(t, []string{
		"anki://search/deckcurrent",
		"anki://search/isdue",
		"anki://search/isnew",
	}, uris)
}

func TestKeywordFromURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "anki://search/isnew", want: "isnew"},
		{uri: "anki://search/deckcurrent", want: "deckcurrent"},
		{uri: "anki://search/deck:Spanish%20Verbs", want: "deck:Spanish Verbs"},
		{uri: "anki://search/nested/isdue", want: "isdue"},
		{uri: "anki://search/", wantErr: true},
		{uri: "anki://search", wantErr: true},
		{uri: "", wantErr: true},
		{uri: "anki://search/%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := keywordFromURI(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadResource_NewCards(t *testing.T) {
	store, resources, _ := setupTestHandlers(t)
	seedCards(store, "is:new", 3, 1, 2)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = "anki://search/isnew"

	contents, err := resources.ReadResource(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok, "Resource content should be TextResourceContents")
	assert.Equal(t, "anki://search/isnew", text.URI)
	assert.Equal(t, "application/json", text.MIMEType)

	var got []cards.Card
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	require.Len(t, got, 3)

	for i, card := range got {
		assert.NotContains(t, card.Question, "<")
		assert.NotContains(t, card.Answer, "<")
		assert.NotContains(t, card.Answer, "&amp;")
		if i > 0 {
			assert.LessOrEqual(t, got[i-1].Due, card.Due)
		}
	}
	assert.Equal(t, cards.Card{CardID: 2, Question: "Question B", Answer: "Question B Answer & more", Due: 1}, got[0])
}

func TestReadResource_EmptyResultIsArray(t *testing.T) {
	_, resources, _ := setupTestHandlers(t)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = "anki://search/deckcurrent"

	contents, err := resources.ReadResource(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.JSONEq(t, "[]", contents[0].(mcp.TextResourceContents).Text)
}

func TestReadResource_NoPathSegment(t *testing.T) {
	store, resources, _ := setupTestHandlers(t)

	request := mcp.ReadResourceRequest{}
	request.Params.URI = "anki://search/"

	contents, err := resources.ReadResource(context.Background(), request)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, contents)
	assert.Empty(t, store.Calls(), "no store call should be made")
}

func TestReadResource_StoreErrorReturnedUnchanged(t *testing.T) {
	store, resources, _ := setupTestHandlers(t)
	storeErr := &ankiconnect.APIError{Action: "findCards", Message: "collection is not available"}
	store.Err = storeErr

	request := mcp.ReadResourceRequest{}
	request.Params.URI = "anki://search/isdue"

	contents, err := resources.ReadResource(context.Background(), request)
	assert.Same(t, storeErr, err)
	assert.Nil(t, contents)
}

func TestToolCatalog(t *testing.T) {
	tools := toolCatalog()
	require.Len(t, tools, 4)

	required := map[string][]string{
		"update_cards":  {"answers"},
		"add_card":      {"front", "back"},
		"get_due_cards": {"num"},
		"get_new_cards": {"num"},
	}
	for _, tool := range tools {
		want, ok := required[tool.Name]
		require.True(t, ok, "unexpected tool %s", tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.ElementsMatch(t, want, tool.InputSchema.Required, "required params of %s", tool.Name)
		for _, param := range want {
			assert.Contains(t, tool.InputSchema.Properties, param)
		}
		delete(required, tool.Name)
	}
	assert.Empty(t, required, "missing tools")
}

func TestCall_NoArguments(t *testing.T) {
	for _, name := range []string{"update_cards", "add_card", "get_due_cards", "get_new_cards", "bogus"} {
		t.Run(name, func(t *testing.T) {
			store, _, tools := setupTestHandlers(t)

			result, err := tools.Call(context.Background(), name, nil)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Nil(t, result)
			assert.Empty(t, store.Calls(), "no store call should be made")
		})
	}
}

func TestCall_UnknownTool(t *testing.T) {
	store, _, tools := setupTestHandlers(t)

	result, err := tools.Call(context.Background(), "delete_deck", map[string]interface{}{"deck": "Default"})
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), "delete_deck")
	assert.Nil(t, result)
	assert.Empty(t, store.Calls())
}

func TestCall_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{name: "answers missing", tool: "update_cards", args: map[string]interface{}{}},
		{name: "answers empty", tool: "update_cards", args: map[string]interface{}{"answers": []interface{}{}}},
		{name: "answers not a list", tool: "update_cards", args: map[string]interface{}{"answers": "1:3"}},
		{name: "ease too high", tool: "update_cards", args: map[string]interface{}{"answers": answersArg(1, 5)}},
		{name: "ease zero", tool: "update_cards", args: map[string]interface{}{"answers": answersArg(1, 0)}},
		{name: "card id missing", tool: "update_cards", args: map[string]interface{}{
			"answers": []interface{}{map[string]interface{}{"ease": float64(3)}},
		}},
		{name: "back missing", tool: "add_card", args: map[string]interface{}{"front": "<b>Q</b>"}},
		{name: "front empty", tool: "add_card", args: map[string]interface{}{"front": "", "back": "A"}},
		{name: "num missing", tool: "get_due_cards", args: map[string]interface{}{}},
		{name: "num not a number", tool: "get_new_cards", args: map[string]interface{}{"num": "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, tools := setupTestHandlers(t)
			seedCards(store, "is:due", 1)

			result, err := tools.Call(context.Background(), tt.tool, tt.args)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Nil(t, result)
			assert.Empty(t, store.Calls(), "no store call should be made")
		})
	}
}

func TestUpdateCards_Success(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	seedCards(store, "is:due", 10, 20)

	result, err := tools.Call(context.Background(), "update_cards", map[string]interface{}{
		"answers": answersArg(1, 2, 2, 4),
	})
	require.NoError(t, err)

	assert.Equal(t, "Updated cards 1, 2", resultText(t, result))
	assert.Equal(t, []ankiconnect.Answer{{CardID: 1, Ease: 2}, {CardID: 2, Ease: 4}}, store.Answers())
	assert.Equal(t, []string{"answerCards"}, store.Calls(), "answers should be submitted in one batch")
}

func TestUpdateCards_PartialFailure(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	seedCards(store, "is:due", 10, 20)
	store.Reject(2)

	result, err := tools.Call(context.Background(), "update_cards", map[string]interface{}{
		"answers": answersArg(1, 2, 2, 4),
	})
	assert.Nil(t, result)

	var partial *PartialFailureError
	require.True(t, errors.As(err, &partial), "expected PartialFailureError, got %v", err)
	assert.Equal(t, []int64{2}, partial.CardIDs)
	assert.Equal(t, "failed to update cards 2", err.Error())

	// Card 1 was still answered in Anki.
	assert.Equal(t, []ankiconnect.Answer{{CardID: 1, Ease: 2}}, store.Answers())
}

func TestUpdateCards_AllFailed(t *testing.T) {
	_, _, tools := setupTestHandlers(t)

	_, err := tools.Call(context.Background(), "update_cards", map[string]interface{}{
		"answers": answersArg(7, 3, 8, 1),
	})
	assert.EqualError(t, err, "failed to update cards 7, 8")
}

func TestUpdateCards_StoreError(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	store.Err = errors.New("connection refused")

	_, err := tools.Call(context.Background(), "update_cards", map[string]interface{}{
		"answers": answersArg(1, 3),
	})
	assert.Same(t, store.Err, err)
}

// answerResultStore reports fixed answerCards results regardless of input.
type answerResultStore struct {
	*ankitest.Store
	results []bool
}

func (s answerResultStore) AnswerCards(context.Context, []ankiconnect.Answer) ([]bool, error) {
	return s.results, nil
}

func TestUpdateCards_ResultCountMismatch(t *testing.T) {
	tests := []struct {
		name    string
		results []bool
	}{
		{name: "fewer results", results: []bool{true}},
		{name: "more results", results: []bool{true, true, false}},
		{name: "no results", results: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := answerResultStore{Store: ankitest.NewStore(), results: tt.results}
			tools := NewToolHandler(store, cards.NewRetriever(store, nil), nil)

			result, err := tools.Call(context.Background(), "update_cards", map[string]interface{}{
				"answers": answersArg(1, 3, 2, 4),
			})
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ankiconnect.ErrResultCount)
		})
	}
}

func TestAddCard(t *testing.T) {
	store, _, tools := setupTestHandlers(t)

	result, err := tools.Call(context.Background(), "add_card", map[string]interface{}{
		"front": "What is <b>2+2</b>?",
		"back":  "<i>4</i>",
	})
	require.NoError(t, err)

	text := resultText(t, result)
	require.True(t, strings.HasPrefix(text, "Created card with id "), text)

	cardID, err := strconv.ParseInt(strings.TrimPrefix(text, "Created card with id "), 10, 64)
	require.NoError(t, err)

	card, ok := store.Card(cardID)
	require.True(t, ok, "card %d should exist", cardID)
	assert.Equal(t, "Default", card.DeckName)
	assert.Equal(t, "What is <b>2+2</b>?", card.Question, "fields are passed through verbatim")
	assert.Equal(t, []string{"addNote", "findCards"}, store.Calls())
}

func TestAddCard_NoCardForNote(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	store.SkipCardCreation = true

	result, err := tools.Call(context.Background(), "add_card", map[string]interface{}{
		"front": "Q",
		"back":  "A",
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ankiconnect.ErrNoCardForNote)
}

func TestAddCard_StoreError(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	store.Err = &ankiconnect.APIError{Action: "addNote", Message: "cannot create note because it is a duplicate"}

	_, err := tools.Call(context.Background(), "add_card", map[string]interface{}{
		"front": "Q",
		"back":  "A",
	})
	assert.Same(t, store.Err, err)
}

func TestGetDueCards(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	seedCards(store, "is:due", 50, 30, 90, 10, 70)

	result, err := tools.Call(context.Background(), "get_due_cards", map[string]interface{}{"num": float64(2)})
	require.NoError(t, err)

	want := []cards.Card{
		{CardID: 4, Question: "Question D", Answer: "Question D Answer & more", Due: 10},
		{CardID: 2, Question: "Question B", Answer: "Question B Answer & more", Due: 30},
	}
	if diff := cmp.Diff(want, resultCards(t, result)); diff != "" {
		t.Errorf("get_due_cards mismatch (-want +got):\n%s", diff)
	}
}

func TestGetNewCards(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	seedCards(store, "is:new", 3, 2, 1)

	result, err := tools.Call(context.Background(), "get_new_cards", map[string]interface{}{"num": float64(10)})
	require.NoError(t, err)

	got := resultCards(t, result)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{got[0].CardID, got[1].CardID, got[2].CardID})
}

func TestCardCountTruncation(t *testing.T) {
	tests := []struct {
		num  interface{}
		want int
	}{
		{num: float64(-3), want: 0},
		{num: float64(0), want: 0},
		{num: float64(1), want: 1},
		{num: float64(3), want: 3},
		{num: float64(4), want: 4},
		{num: float64(100), want: 4},
		{num: "2", want: 2},
	}

	for _, tt := range tests {
		store, _, tools := setupTestHandlers(t)
		seedCards(store, "is:due", 4, 3, 2, 1)

		result, err := tools.Call(context.Background(), "get_due_cards", map[string]interface{}{"num": tt.num})
		require.NoError(t, err, "num=%v", tt.num)

		got := resultCards(t, result)
		assert.NotNil(t, got, "num=%v should yield a JSON array", tt.num)
		assert.Len(t, got, tt.want, "num=%v", tt.num)
	}
}

func TestGetDueCards_StoreError(t *testing.T) {
	store, _, tools := setupTestHandlers(t)
	store.Err = errors.New("anki is closed")

	_, err := tools.Call(context.Background(), "get_due_cards", map[string]interface{}{"num": float64(1)})
	assert.Same(t, store.Err, err)
}

func TestGetDueCardsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("returns the num most urgent cards", prop.ForAll(
		func(dues []int64, num int) bool {
			store, _, tools := setupTestHandlers(t)
			seedCards(store, "is:due", dues...)

			result, err := tools.Call(context.Background(), "get_due_cards", map[string]interface{}{"num": float64(num)})
			if err != nil {
				return false
			}
			var got []cards.Card
			if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &got); err != nil {
				return false
			}

			sorted := append([]int64(nil), dues...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			want := num
			if want < 0 {
				want = 0
			}
			if want > len(sorted) {
				want = len(sorted)
			}
			if len(got) != want {
				return false
			}
			for i, card := range got {
				if card.Due != sorted[i] || strings.Contains(card.Question, "<") {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 365)),
		gen.IntRange(-2, 12),
	))

	properties.TestingRun(t)
}
