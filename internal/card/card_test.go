package card

import (
	"errors"
	"testing"
)

func countCards(deck []Card) map[Card]int {
	counts := map[Card]int{}
	for _, c := range deck {
		counts[c]++
	}
	return counts
}

func TestNewDeckComposition(t *testing.T) {
	deck := NewDeck()
	if len(deck) != 108 {
		t.Fatalf("deck size: got %d, want 108", len(deck))
	}

	counts := countCards(deck)
	for _, col := range Colors {
		if got := counts[Card{Color: col, Rank: "0"}]; got != 1 {
			t.Errorf("%s 0: got %d, want 1", col, got)
		}
		for _, r := range []Rank{"1", "5", "9", Skip, Reverse, DrawTwo} {
			if got := counts[Card{Color: col, Rank: r}]; got != 2 {
				t.Errorf("%s %s: got %d, want 2", col, r, got)
			}
		}
	}
	if got := counts[Card{Color: Wild, Rank: WildRank}]; got != 4 {
		t.Errorf("wild: got %d, want 4", got)
	}
	if got := counts[Card{Color: Wild, Rank: WildDrawFour}]; got != 4 {
		t.Errorf("wild_draw4: got %d, want 4", got)
	}
}

func TestShufflePreservesMultiset(t *testing.T) {
	deck := NewDeck()
	before := countCards(deck)
	Shuffle(deck)
	after := countCards(deck)

	if len(deck) != 108 {
		t.Fatalf("deck size after shuffle: got %d, want 108", len(deck))
	}
	for c, n := range before {
		if after[c] != n {
			t.Fatalf("card %v: got %d, want %d", c, after[c], n)
		}
	}
}

func TestReshuffleFromDiscard(t *testing.T) {
	discard := []Card{
		{Color: Red, Rank: "1"},
		{Color: Blue, Rank: "2"},
		{Color: Green, Rank: Skip},
		{Color: Yellow, Rank: "7"},
	}
	top := discard[len(discard)-1]

	draw, newDiscard, err := ReshuffleFromDiscard(discard)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(newDiscard) != 1 || newDiscard[0] != top {
		t.Fatalf("new discard: got %v, want [%v]", newDiscard, top)
	}
	if len(draw) != 3 {
		t.Fatalf("draw pile size: got %d, want 3", len(draw))
	}

	counts := countCards(draw)
	for _, c := range discard[:3] {
		if counts[c] != 1 {
			t.Fatalf("card %v missing from reshuffled draw pile", c)
		}
	}
}

func TestReshuffleFromDiscardTooFewCards(t *testing.T) {
	for _, discard := range [][]Card{nil, {{Color: Red, Rank: "4"}}} {
		_, _, err := ReshuffleFromDiscard(discard)
		if !errors.Is(err, ErrEmptyDeck) {
			t.Fatalf("discard %v: want ErrEmptyDeck, got %v", discard, err)
		}
	}
}

func TestIsWild(t *testing.T) {
	cases := []struct {
		card Card
		want bool
	}{
		{Card{Color: Wild, Rank: WildRank}, true},
		{Card{Color: Wild, Rank: WildDrawFour}, true},
		{Card{Color: Red, Rank: WildRank}, true}, // recolored after play
		{Card{Color: Red, Rank: "4"}, false},
		{Card{Color: Blue, Rank: Skip}, false},
	}
	for _, tc := range cases {
		if got := tc.card.IsWild(); got != tc.want {
			t.Errorf("IsWild(%v): got %v, want %v", tc.card, got, tc.want)
		}
	}
}
