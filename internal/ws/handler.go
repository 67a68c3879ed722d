package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"uno/internal/card"
	"uno/internal/game"
	"uno/internal/session"
	"uno/internal/types"
)

// Handler upgrades a client onto a session: /ws?game=<id>&player=<id>&name=<username>.
// The player is seated on connect if the game is still waiting; otherwise
// they spectate. One writer goroutine drains the subscription outbox;
// command errors are written straight back on the reader side.
func Handler(d *session.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(r.URL.Query().Get("game"))
		if err != nil {
			http.Error(w, "missing or invalid game id", http.StatusBadRequest)
			return
		}
		playerID, err := uuid.Parse(r.URL.Query().Get("player"))
		if err != nil {
			playerID = uuid.New()
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "Guest"
		}

		sess, err := d.Get(r.Context(), gameID)
		if err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		// Join-by-visit. Full or already-started games still allow watching.
		joinErr := sess.Do(r.Context(), game.Command{Type: game.CmdJoin, PlayerID: playerID, Username: name})
		switch {
		case joinErr == nil:
		case errors.Is(joinErr, game.ErrAlreadyStarted),
			errors.Is(joinErr, game.ErrSessionFull),
			errors.Is(joinErr, game.ErrGameFinished):
		default:
			http.Error(w, joinErr.Error(), http.StatusConflict)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerMessage, 16)
		clientID := uuid.NewString()
		if err := sess.Subscribe(r.Context(), clientID, playerID, out); err != nil {
			return
		}
		defer sess.Unsubscribe(clientID)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for m := range out {
				payload, err := json.Marshal(m)
				if err != nil {
					log.Error("marshal server message", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "BadRequest", "bad json")
				continue
			}
			cmd, ok := toCommand(cm, playerID)
			if !ok {
				writeError(r.Context(), conn, "BadRequest", "unknown message type")
				continue
			}
			if err := sess.Do(r.Context(), cmd); err != nil {
				writeError(r.Context(), conn, errKind(err), err.Error())
			}
		}
	}
}

func toCommand(m types.ClientMessage, playerID uuid.UUID) (game.Command, bool) {
	switch m.Type {
	case "start_game":
		return game.Command{Type: game.CmdStart, PlayerID: playerID}, true
	case "play_card":
		if m.Card == nil {
			return game.Command{}, false
		}
		c := *m.Card
		if c.IsWild() && m.ChosenColor != "" {
			c.Color = card.Color(m.ChosenColor)
		}
		return game.Command{Type: game.CmdPlayCard, PlayerID: playerID, Card: c}, true
	case "draw_card":
		return game.Command{Type: game.CmdDrawCard, PlayerID: playerID}, true
	case "leave_game":
		return game.Command{Type: game.CmdLeave, PlayerID: playerID}, true
	default:
		return game.Command{}, false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, kind, message string) {
	payload, err := json.Marshal(types.ServerMessage{Type: types.MsgError, Kind: kind, Error: message})
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func errKind(err error) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return "NotYourTurn"
	case errors.Is(err, game.ErrCardNotInHand):
		return "CardNotInHand"
	case errors.Is(err, game.ErrIllegalMove):
		return "IllegalMove"
	case errors.Is(err, game.ErrInsufficientPlayers):
		return "InsufficientPlayers"
	case errors.Is(err, game.ErrSessionFull):
		return "SessionFull"
	case errors.Is(err, game.ErrAlreadyStarted):
		return "AlreadyStarted"
	case errors.Is(err, game.ErrNotStarted):
		return "NotStarted"
	case errors.Is(err, game.ErrGameFinished):
		return "GameFinished"
	case errors.Is(err, game.ErrNotInSession):
		return "NotInSession"
	case errors.Is(err, game.ErrCreatorCannotLeave):
		return "CreatorCannotLeave"
	case errors.Is(err, card.ErrEmptyDeck):
		return "EmptyDeck"
	case errors.Is(err, session.ErrSessionNotFound):
		return "SessionNotFound"
	default:
		return "Internal"
	}
}
