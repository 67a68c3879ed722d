// Package types defines the JSON wire messages exchanged with clients.
package types

import (
	"github.com/google/uuid"

	"uno/internal/card"
	"uno/internal/game"
)

// ClientMessage is one command sent by a connected client.
type ClientMessage struct {
	Type        string     `json:"type"` // "start_game" | "play_card" | "draw_card" | "leave_game"
	Card        *card.Card `json:"card,omitempty"`
	ChosenColor string     `json:"chosen_color,omitempty"`
}

const (
	MsgStateSnapshot  = "state_snapshot"
	MsgPlayerJoined   = "player_joined"
	MsgPlayerLeft     = "player_left"
	MsgGameStarted    = "game_started"
	MsgCardPlayed     = "card_played"
	MsgCardDrawn      = "card_drawn"
	MsgPlayerDrewCard = "player_drew_card"
	MsgPlayerSkipped  = "player_skipped"
	MsgTurnChanged    = "turn_changed"
	MsgTurnTimedOut   = "player_turn_timeout"
	MsgGameFinished   = "game_finished"
	MsgSessionDeleted = "game_deleted"
	MsgError          = "error"
)

// ServerMessage is the flat union of everything the server pushes.
type ServerMessage struct {
	Type          string     `json:"type"`
	PlayerID      string     `json:"user_id,omitempty"`
	Username      string     `json:"username,omitempty"`
	Card          *card.Card `json:"card,omitempty"`
	CurrentPlayer string     `json:"current_player,omitempty"`
	NextPlayer    string     `json:"next_player,omitempty"`
	CardsLeft     int        `json:"cards_left,omitempty"`
	CardsDrawn    int        `json:"cards_drawn,omitempty"`
	SpecialAction string     `json:"special_action,omitempty"`
	WinnerID      string     `json:"winner,omitempty"`
	WinnerName    string     `json:"winner_name,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	AutoDeleted   bool       `json:"auto_deleted,omitempty"`
	State         *GameView  `json:"state,omitempty"`
	Kind          string     `json:"kind,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// FromEvent converts an engine event into its wire form.
func FromEvent(ev game.Event) ServerMessage {
	msg := ServerMessage{
		PlayerID:      idString(ev.PlayerID),
		Username:      ev.Username,
		Card:          ev.Card,
		CardsLeft:     ev.CardsLeft,
		CardsDrawn:    ev.CardsDrawn,
		SpecialAction: ev.SpecialAction,
	}
	switch ev.Type {
	case game.EvtPlayerJoined:
		msg.Type = MsgPlayerJoined
	case game.EvtPlayerLeft:
		msg.Type = MsgPlayerLeft
	case game.EvtGameStarted:
		msg.Type = MsgGameStarted
		msg.CurrentPlayer = idString(ev.CurrentPlayer)
	case game.EvtCardPlayed:
		msg.Type = MsgCardPlayed
		msg.NextPlayer = idString(ev.CurrentPlayer)
	case game.EvtCardDrawn:
		msg.Type = MsgCardDrawn
	case game.EvtPlayerDrewCard:
		msg.Type = MsgPlayerDrewCard
	case game.EvtPlayerSkipped:
		msg.Type = MsgPlayerSkipped
	case game.EvtTurnChanged:
		msg.Type = MsgTurnChanged
		msg.CurrentPlayer = idString(ev.CurrentPlayer)
	case game.EvtTurnTimedOut:
		msg.Type = MsgTurnTimedOut
	case game.EvtGameFinished:
		msg.Type = MsgGameFinished
		msg.WinnerID = idString(ev.WinnerID)
		msg.WinnerName = ev.WinnerName
	}
	return msg
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// PlayerView is a player as other players see them: no cards, just a count.
type PlayerView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsAI      bool   `json:"is_ai"`
	CardCount int    `json:"card_count"`
}

// GameView is the personalized snapshot sent to a client when it subscribes.
// Only the viewer's own hand is included.
type GameView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Phase         string       `json:"phase"`
	Direction     string       `json:"direction"`
	Players       []PlayerView `json:"players"`
	CurrentPlayer string       `json:"current_player,omitempty"`
	TopCard       *card.Card   `json:"top_card,omitempty"`
	Hand          []card.Card  `json:"hand"`
	DrawPileSize  int          `json:"draw_pile_size"`
}

func NewGameView(st game.State, viewer uuid.UUID) GameView {
	v := GameView{
		ID:           st.ID.String(),
		Name:         st.Name,
		Phase:        string(st.Phase),
		Direction:    string(st.Direction),
		Players:      make([]PlayerView, 0, len(st.Players)),
		Hand:         append([]card.Card(nil), st.Hands[viewer]...),
		DrawPileSize: len(st.DrawPile),
	}
	for _, p := range st.Players {
		v.Players = append(v.Players, PlayerView{
			ID:        p.ID.String(),
			Username:  p.Username,
			IsAI:      p.IsAI,
			CardCount: len(st.Hands[p.ID]),
		})
	}
	if cur, ok := st.CurrentPlayer(); ok && st.Phase == game.PhaseActive {
		v.CurrentPlayer = cur.ID.String()
	}
	if top, ok := st.TopCard(); ok {
		v.TopCard = &top
	}
	return v
}
