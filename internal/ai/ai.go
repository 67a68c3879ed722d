// Package ai is the decision procedure for computer-controlled seats. It is
// a deterministic greedy heuristic, not a search: action cards first, then
// color matches, then wilds. Anything smarter can replace it as long as it
// keeps the same hand-in, move-out shape.
package ai

import (
	"uno/internal/card"
	"uno/internal/rules"
)

// ChooseMove picks the card to play against top. The returned card already
// carries the chosen color if it is a wild. ok is false when nothing in the
// hand is legal and the AI must draw instead.
func ChooseMove(hand []card.Card, top card.Card) (c card.Card, ok bool) {
	var playable []card.Card
	for _, h := range hand {
		if rules.CanPlay(h, top) {
			playable = append(playable, h)
		}
	}
	if len(playable) == 0 {
		return card.Card{}, false
	}

	pick := playable[0]
	if a, found := first(playable, card.Card.IsAction); found {
		pick = a
	} else if m, found := first(playable, func(h card.Card) bool {
		return h.Color == top.Color && h.Color != card.Wild
	}); found {
		pick = m
	}

	if pick.IsWild() {
		pick.Color = ChooseColor(without(hand, pick))
	}
	return pick, true
}

// ChooseColor returns the color most frequent among the given cards, falling
// back to the fixed priority order on ties or an all-wild hand.
func ChooseColor(hand []card.Card) card.Color {
	counts := make(map[card.Color]int, 4)
	for _, h := range hand {
		if h.Color != card.Wild {
			counts[h.Color]++
		}
	}
	best := card.Colors[0]
	for _, col := range card.Colors[1:] {
		if counts[col] > counts[best] {
			best = col
		}
	}
	return best
}

func first(cards []card.Card, pred func(card.Card) bool) (card.Card, bool) {
	for _, c := range cards {
		if pred(c) {
			return c, true
		}
	}
	return card.Card{}, false
}

// without removes one instance of c, leaving the rest of the hand for the
// wild color count.
func without(hand []card.Card, c card.Card) []card.Card {
	rest := make([]card.Card, 0, len(hand))
	removed := false
	for _, h := range hand {
		if !removed && h == c {
			removed = true
			continue
		}
		rest = append(rest, h)
	}
	return rest
}
