// Package ease defines the answer scale used when reviewing a card.
//
// The values are the ones AnkiConnect's answerCards expects, one per answer
// button:
//
//	Again = 1, Hard = 2, Good = 3, Easy = 4
package ease

import "fmt"

// Ease is the button pressed when answering a card.
type Ease int

const (
	Again Ease = iota + 1
	Hard
	Good
	Easy
)

// Valid reports whether e is one of the four answer buttons.
func (e Ease) Valid() bool {
	return e >= Again && e <= Easy
}

func (e Ease) String() string {
	switch e {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	}
	return fmt.Sprintf("ease(%d)", int(e))
}
