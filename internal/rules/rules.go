// Package rules holds the fixed rule set of this variant: card legality,
// turn-order arithmetic and special-card effects.
package rules

import "uno/internal/card"

type Direction string

const (
	Clockwise        Direction = "clockwise"
	Counterclockwise Direction = "counterclockwise"
)

func Flip(d Direction) Direction {
	if d == Clockwise {
		return Counterclockwise
	}
	return Clockwise
}

// CanPlay reports whether c may be placed on top of top. Wilds are always
// legal; otherwise color or rank must match.
func CanPlay(c, top card.Card) bool {
	if c.Color == card.Wild || c.IsWild() {
		return true
	}
	return c.Color == top.Color || c.Rank == top.Rank
}

// TurnOffset is how many seats a played card advances the turn. Skip jumps
// exactly one player regardless of table size, so in a two-player game the
// turn comes straight back to the player who played it.
func TurnOffset(r card.Rank) int {
	if r == card.Skip {
		return 2
	}
	return 1
}

// DrawPenalty is the number of cards the next player is forced to draw.
func DrawPenalty(r card.Rank) int {
	switch r {
	case card.DrawTwo:
		return 2
	case card.WildDrawFour:
		return 4
	}
	return 0
}

// NextIndex advances current by offset seats over n players in direction d.
func NextIndex(n, current, offset int, d Direction) int {
	if d == Counterclockwise {
		return ((current-offset)%n + n) % n
	}
	return (current + offset) % n
}
