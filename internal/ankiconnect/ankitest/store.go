// Package ankitest provides an in-memory ankiconnect.Store for tests.
package ankitest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/danieldreier/mcp-anki/internal/ankiconnect"
)

// Store is an in-memory stand-in for an Anki collection. Queries are not
// parsed: results come from SetQuery, except "nid:<id>" which resolves to the
// cards created for that note.
type Store struct {
	mu       sync.RWMutex
	cards    map[int64]ankiconnect.CardInfo
	queries  map[string][]int64
	notes    map[int64][]int64
	answers  []ankiconnect.Answer
	rejected map[int64]bool
	nextID   int64
	calls    []string

	// Err, when set, is returned by every operation.
	Err error
	// SkipCardCreation makes AddNote create a note without any card.
	SkipCardCreation bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		cards:    make(map[int64]ankiconnect.CardInfo),
		queries:  make(map[string][]int64),
		notes:    make(map[int64][]int64),
		rejected: make(map[int64]bool),
		nextID:   1000,
	}
}

// AddCard stores a card record.
func (s *Store) AddCard(card ankiconnect.CardInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.CardID] = card
}

// SetQuery makes FindCards return ids for query, in that order.
func (s *Store) SetQuery(query string, ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[query] = ids
}

// Reject makes AnswerCards report failure for the given card.
func (s *Store) Reject(cardID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[cardID] = true
}

// Answers returns every answer accepted so far.
func (s *Store) Answers() []ankiconnect.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ankiconnect.Answer(nil), s.answers...)
}

// Calls returns the names of the operations invoked so far.
func (s *Store) Calls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.calls...)
}

// Card returns a stored card.
func (s *Store) Card(id int64) (ankiconnect.CardInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[id]
	return card, ok
}

// FindCards implements ankiconnect.Store.
func (s *Store) FindCards(_ context.Context, query string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "findCards")
	if s.Err != nil {
		return nil, s.Err
	}

	if rest, ok := strings.CutPrefix(query, "nid:"); ok {
		nid, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return nil, &ankiconnect.APIError{Action: "findCards", Message: "invalid search: " + query}
		}
		return append([]int64{}, s.notes[nid]...), nil
	}
	return append([]int64{}, s.queries[query]...), nil
}

// CardsInfo implements ankiconnect.Store.
func (s *Store) CardsInfo(_ context.Context, ids []int64) ([]ankiconnect.CardInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "cardsInfo")
	if s.Err != nil {
		return nil, s.Err
	}

	result := make([]ankiconnect.CardInfo, 0, len(ids))
	for _, id := range ids {
		card, ok := s.cards[id]
		if !ok {
			return nil, fmt.Errorf("card %d not found", id)
		}
		result = append(result, card)
	}
	return result, nil
}

// AnswerCards implements ankiconnect.Store.
func (s *Store) AnswerCards(_ context.Context, answers []ankiconnect.Answer) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "answerCards")
	if s.Err != nil {
		return nil, s.Err
	}

	results := make([]bool, len(answers))
	for i, answer := range answers {
		_, exists := s.cards[answer.CardID]
		if !exists || s.rejected[answer.CardID] {
			continue
		}
		s.answers = append(s.answers, answer)
		results[i] = true
	}
	return results, nil
}

// AddNote implements ankiconnect.Store. Each note gets one card in its deck.
func (s *Store) AddNote(_ context.Context, note ankiconnect.Note) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "addNote")
	if s.Err != nil {
		return 0, s.Err
	}

	s.nextID++
	noteID := s.nextID
	s.notes[noteID] = nil
	if s.SkipCardCreation {
		return noteID, nil
	}

	s.nextID++
	cardID := s.nextID
	s.cards[cardID] = ankiconnect.CardInfo{
		CardID:   cardID,
		NoteID:   noteID,
		DeckName: note.DeckName,
		Question: note.Fields["Front"],
		Answer:   note.Fields["Front"] + "<hr id=answer>" + note.Fields["Back"],
	}
	s.notes[noteID] = []int64{cardID}
	return noteID, nil
}

var _ ankiconnect.Store = (*Store)(nil)
