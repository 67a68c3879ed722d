package card

import (
	"errors"
	"math/rand/v2"
)

// ErrEmptyDeck is returned when the draw pile is exhausted and the discard
// pile has no spare cards to reshuffle. With the full 108-card deck in play
// this should be unreachable, but it is reported rather than panicking.
var ErrEmptyDeck = errors.New("no cards left to draw")

type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	Wild   Color = "wild"
)

// Colors lists the four playable colors. The order doubles as the fixed
// tie-break priority when the AI has to choose a wild color.
var Colors = []Color{Red, Yellow, Green, Blue}

type Rank string

const (
	Skip         Rank = "skip"
	Reverse      Rank = "reverse"
	DrawTwo      Rank = "draw2"
	WildRank     Rank = "wild"
	WildDrawFour Rank = "wild_draw4"
)

var numberRanks = []Rank{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

// Card is an immutable value; equality is structural. A wild card played
// with a chosen color is a new value (chosen color, wild rank) distinct from
// the generic wild sitting in a hand.
type Card struct {
	Color Color `json:"color"`
	Rank  Rank  `json:"value"`
}

func (c Card) IsWild() bool {
	return c.Rank == WildRank || c.Rank == WildDrawFour
}

func (c Card) IsAction() bool {
	switch c.Rank {
	case Skip, Reverse, DrawTwo, WildDrawFour:
		return true
	}
	return false
}

func (c Card) String() string {
	return string(c.Color) + " " + string(c.Rank)
}

// NewDeck builds the full 108-card deck in deterministic order: per color one
// 0, two each of 1-9, two each of skip/reverse/draw2, plus four wilds and
// four wild draw-fours.
func NewDeck() []Card {
	deck := make([]Card, 0, 108)
	for _, col := range Colors {
		deck = append(deck, Card{Color: col, Rank: numberRanks[0]})
		for _, r := range numberRanks[1:] {
			deck = append(deck, Card{Color: col, Rank: r}, Card{Color: col, Rank: r})
		}
		for _, r := range []Rank{Skip, Reverse, DrawTwo} {
			deck = append(deck, Card{Color: col, Rank: r}, Card{Color: col, Rank: r})
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, Card{Color: Wild, Rank: WildRank}, Card{Color: Wild, Rank: WildDrawFour})
	}
	return deck
}

// Shuffle permutes the deck in place (Fisher-Yates via rand.Shuffle).
func Shuffle(deck []Card) {
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// ReshuffleFromDiscard turns everything but the top discard into a fresh,
// shuffled draw pile. The top card stays behind as the sole discard.
func ReshuffleFromDiscard(discard []Card) (draw, newDiscard []Card, err error) {
	if len(discard) <= 1 {
		return nil, discard, ErrEmptyDeck
	}
	top := discard[len(discard)-1]
	draw = append([]Card(nil), discard[:len(discard)-1]...)
	Shuffle(draw)
	return draw, []Card{top}, nil
}
