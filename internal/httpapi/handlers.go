package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/profile"
)

const defaultLeaderboardLimit = 20

// Leaderboard serves the read-only side fetch a client makes from the
// game-over screen.
func Leaderboard(profiles profile.API, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("mode")
		if mode == "" {
			http.Error(w, "missing mode", http.StatusBadRequest)
			return
		}
		limit := defaultLeaderboardLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		entries, err := profiles.Leaderboard(r.Context(), mode, limit)
		if err != nil {
			logger.Error("leaderboard fetch failed", zap.String("mode", mode), zap.Error(err))
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Mode    string          `json:"mode"`
			Entries []profile.Entry `json:"entries"`
		}{Mode: mode, Entries: entries})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
