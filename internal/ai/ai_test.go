package ai

import (
	"testing"

	"uno/internal/card"
)

func TestChooseMoveNoLegalCard(t *testing.T) {
	top := card.Card{Color: card.Red, Rank: "5"}
	hand := []card.Card{
		{Color: card.Blue, Rank: "9"},
		{Color: card.Green, Rank: "2"},
	}
	if _, ok := ChooseMove(hand, top); ok {
		t.Fatal("expected a draw with no playable card")
	}
}

func TestChooseMovePrefersActionCards(t *testing.T) {
	top := card.Card{Color: card.Red, Rank: "5"}
	hand := []card.Card{
		{Color: card.Red, Rank: "9"},
		{Color: card.Red, Rank: card.Skip},
		{Color: card.Blue, Rank: "5"},
	}
	pick, ok := ChooseMove(hand, top)
	if !ok {
		t.Fatal("expected a play")
	}
	if pick.Rank != card.Skip {
		t.Errorf("pick: got %v, want the skip", pick)
	}
}

func TestChooseMovePrefersColorMatchOverWild(t *testing.T) {
	top := card.Card{Color: card.Red, Rank: "5"}
	hand := []card.Card{
		{Color: card.Wild, Rank: card.WildRank},
		{Color: card.Red, Rank: "9"},
	}
	pick, ok := ChooseMove(hand, top)
	if !ok {
		t.Fatal("expected a play")
	}
	if want := (card.Card{Color: card.Red, Rank: "9"}); pick != want {
		t.Errorf("pick: got %v, want %v", pick, want)
	}
}

func TestChooseMoveRecolorsWild(t *testing.T) {
	top := card.Card{Color: card.Red, Rank: "5"}
	hand := []card.Card{
		{Color: card.Wild, Rank: card.WildRank},
		{Color: card.Green, Rank: "2"},
		{Color: card.Green, Rank: "7"},
		{Color: card.Blue, Rank: "1"},
	}
	pick, ok := ChooseMove(hand, top)
	if !ok {
		t.Fatal("expected a play")
	}
	if pick.Rank != card.WildRank {
		t.Fatalf("pick: got %v, want the wild", pick)
	}
	// Green dominates what remains in the hand.
	if pick.Color != card.Green {
		t.Errorf("chosen color: got %s, want green", pick.Color)
	}
}

func TestChooseColor(t *testing.T) {
	cases := []struct {
		name string
		hand []card.Card
		want card.Color
	}{
		{
			"majority",
			[]card.Card{
				{Color: card.Blue, Rank: "1"},
				{Color: card.Blue, Rank: "2"},
				{Color: card.Red, Rank: "3"},
			},
			card.Blue,
		},
		{
			"tie falls back to priority order",
			[]card.Card{
				{Color: card.Yellow, Rank: "1"},
				{Color: card.Green, Rank: "2"},
			},
			card.Yellow,
		},
		{
			"all wild hand",
			[]card.Card{{Color: card.Wild, Rank: card.WildRank}},
			card.Red,
		},
		{
			"empty hand",
			nil,
			card.Red,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ChooseColor(tc.hand); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}
