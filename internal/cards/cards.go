// Package cards turns Anki search keywords into ordered, plain-text cards.
package cards

import (
	"context"
	"sort"

	"github.com/danieldreier/mcp-anki/internal/ankiconnect"
	"go.uber.org/zap"
)

// Card is a card as presented to MCP clients.
type Card struct {
	CardID   int64  `json:"cardId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Due      int64  `json:"due"`
}

// Retriever looks up cards in an Anki collection.
type Retriever struct {
	store  ankiconnect.Store
	logger *zap.Logger
}

// NewRetriever creates a Retriever backed by store.
func NewRetriever(store ankiconnect.Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, logger: logger}
}

// Retrieve returns the cards matching keyword, ordered by ascending due value.
// Cards with equal due values keep the order Anki returned them in. Store
// errors are returned unchanged.
func (r *Retriever) Retrieve(ctx context.Context, keyword string) ([]Card, error) {
	query := FormatQuery(keyword)
	r.logger.Debug("Retrieving cards", zap.String("keyword", keyword), zap.String("query", query))

	ids, err := r.store.FindCards(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Card{}, nil
	}

	infos, err := r.store.CardsInfo(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]Card, 0, len(infos))
	for _, info := range infos {
		result = append(result, Card{
			CardID:   info.CardID,
			Question: Normalize(info.Question),
			Answer:   Normalize(info.Answer),
			Due:      info.Due,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Due < result[j].Due
	})

	r.logger.Debug("Retrieved cards", zap.String("query", query), zap.Int("count", len(result)))
	return result, nil
}
