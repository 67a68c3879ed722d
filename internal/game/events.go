package game

import (
	"github.com/google/uuid"

	"uno/internal/card"
)

type EventType string

const (
	EvtPlayerJoined   EventType = "PlayerJoined"
	EvtPlayerLeft     EventType = "PlayerLeft"
	EvtGameStarted    EventType = "GameStarted"
	EvtCardPlayed     EventType = "CardPlayed"
	EvtCardDrawn      EventType = "CardDrawn"
	EvtPlayerDrewCard EventType = "PlayerDrewCard"
	EvtPlayerSkipped  EventType = "PlayerSkipped"
	EvtTurnChanged    EventType = "TurnChanged"
	EvtTurnTimedOut   EventType = "TurnTimedOut"
	EvtGameFinished   EventType = "GameFinished"
)

// Event is one outbound notification produced by a transition. To, when set,
// addresses the event to a single player instead of the whole session.
type Event struct {
	Type          EventType
	PlayerID      uuid.UUID
	Username      string
	Card          *card.Card
	CurrentPlayer uuid.UUID
	CardsLeft     int
	CardsDrawn    int
	SpecialAction string
	WinnerID      uuid.UUID
	WinnerName    string
	To            *uuid.UUID
}

func ContainsEvent(events []Event, t EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}
