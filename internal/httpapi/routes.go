package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"uno/internal/session"
	"uno/internal/ws"
)

func SetupRoutes(d *session.Directory, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/games", CreateGame(d, log))
	r.Get("/games", ListGames(d, log))
	r.Post("/games/{id}/ai", AddAIPlayer(d, log))
	r.Delete("/games/{id}", DeleteGame(d, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d, log))
	return r
}
