package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/hub"
	"github.com/futduel/duel-backend/internal/matchmaker"
	"github.com/futduel/duel-backend/internal/profile"
	"github.com/futduel/duel-backend/internal/ws"
)

func SetupRoutes(mm *matchmaker.Matchmaker, h *hub.Hub, profiles profile.API, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/leaderboard", Leaderboard(profiles, logger))
	r.Get("/ws", ws.Handler(mm, h, logger))
	return r
}
