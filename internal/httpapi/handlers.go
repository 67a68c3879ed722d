package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"uno/internal/game"
	"uno/internal/session"
)

type createGameRequest struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	MaxPlayers int    `json:"max_players"`
}

type createGameResponse struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// CreateGame seats the requester as creator and returns both ids; the
// client carries the player id on its websocket connect.
func CreateGame(d *session.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Username == "" {
			req.Username = "Guest"
		}
		creator := game.Player{ID: uuid.New(), Username: req.Username}
		sess, err := d.Create(r.Context(), req.Name, creator, req.MaxPlayers)
		if err != nil {
			log.Error("create game", zap.Error(err))
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createGameResponse{
			GameID:   sess.ID().String(),
			PlayerID: creator.ID.String(),
		})
	}
}

type gameSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phase       string `json:"phase"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

// ListGames is the lobby view: every live game with its phase and seat count.
func ListGames(d *session.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := d.List(r.Context())
		if err != nil {
			log.Error("list games", zap.Error(err))
			http.Error(w, "failed to list games", http.StatusInternalServerError)
			return
		}
		out := make([]gameSummary, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, gameSummary{
				ID:          s.ID.String(),
				Name:        s.Name,
				Phase:       string(s.Phase),
				PlayerCount: s.Players,
				MaxPlayers:  s.MaxPlayers,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

// AddAIPlayer puts a computer-controlled seat into a waiting game.
func AddAIPlayer(d *session.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, gameID, ok := lookupSession(w, r, d)
		if !ok {
			return
		}
		st, err := sess.State(r.Context())
		if err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		aiPlayer := game.Player{
			ID:       uuid.New(),
			Username: fmt.Sprintf("AI_Player_%d", len(st.Players)),
			IsAI:     true,
		}
		err = sess.Do(r.Context(), game.Command{
			Type:     game.CmdJoin,
			PlayerID: aiPlayer.ID,
			Username: aiPlayer.Username,
			IsAI:     true,
		})
		switch {
		case err == nil:
		case errors.Is(err, game.ErrAlreadyStarted), errors.Is(err, game.ErrGameFinished):
			http.Error(w, "cannot add AI to a game that has already started", http.StatusBadRequest)
			return
		case errors.Is(err, game.ErrSessionFull):
			http.Error(w, "game is full", http.StatusBadRequest)
			return
		default:
			log.Error("add ai player", zap.String("game", gameID.String()), zap.Error(err))
			http.Error(w, "failed to add AI player", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		}{ID: aiPlayer.ID.String(), Username: aiPlayer.Username})
	}
}

// DeleteGame is the explicit creator teardown: /games/{id}?player=<creator id>.
func DeleteGame(d *session.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}
		requester, err := uuid.Parse(r.URL.Query().Get("player"))
		if err != nil {
			http.Error(w, "missing player id", http.StatusBadRequest)
			return
		}
		switch err := d.Remove(r.Context(), gameID, requester); {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, session.ErrSessionNotFound):
			http.Error(w, "game not found", http.StatusNotFound)
		case errors.Is(err, session.ErrNotCreator):
			http.Error(w, "only the game creator can delete the game", http.StatusForbidden)
		default:
			log.Error("delete game", zap.String("game", gameID.String()), zap.Error(err))
			http.Error(w, "failed to delete game", http.StatusInternalServerError)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookupSession(w http.ResponseWriter, r *http.Request, d *session.Directory) (*session.Session, uuid.UUID, bool) {
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return nil, uuid.Nil, false
	}
	sess, err := d.Get(r.Context(), gameID)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return nil, uuid.Nil, false
	}
	return sess, gameID, true
}
