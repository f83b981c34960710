package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
)

// API is the slice of the account/profile service the session engine
// consumes. The engine never talks to storage directly.
type API interface {
	RandomPrompt(ctx context.Context, mode string) (game.Prompt, error)
	Stats(ctx context.Context, id game.ParticipantID) (game.PlayerStats, error)
	PersistOutcome(ctx context.Context, sessionID, mode string, outcome game.Outcome) error
	Leaderboard(ctx context.Context, mode string, limit int) ([]Entry, error)
}

type Entry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Elo      int    `json:"elo"`
	Rank     int    `json:"rank"`
}

// Service backs the API with the postgres store and keeps the redis
// leaderboard in step with persisted outcomes.
type Service struct {
	store  *Store
	board  *LeaderboardCache
	logger *zap.Logger
}

func NewService(store *Store, board *LeaderboardCache, logger *zap.Logger) *Service {
	return &Service{store: store, board: board, logger: logger}
}

func (s *Service) RandomPrompt(ctx context.Context, mode string) (game.Prompt, error) {
	return s.store.RandomPrompt(ctx, mode)
}

func (s *Service) Stats(ctx context.Context, id game.ParticipantID) (game.PlayerStats, error) {
	return s.store.Stats(ctx, id)
}

func (s *Service) PersistOutcome(ctx context.Context, sessionID, mode string, outcome game.Outcome) error {
	applied, err := s.store.PersistOutcome(ctx, sessionID, mode, outcome)
	if err != nil {
		return err
	}
	if !applied {
		// Retry of an already-persisted outcome: nothing to re-pay.
		return nil
	}
	for id := range outcome.Rewards {
		stats, err := s.store.Stats(ctx, id)
		if err != nil {
			s.logger.Warn("leaderboard refresh skipped", zap.String("player", string(id)), zap.Error(err))
			continue
		}
		if err := s.board.UpdateRating(ctx, mode, string(id), stats.Elo); err != nil {
			s.logger.Warn("leaderboard update failed", zap.String("player", string(id)), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Leaderboard(ctx context.Context, mode string, limit int) ([]Entry, error) {
	entries, err := s.board.Top(ctx, mode, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if name, err := s.store.PlayerName(ctx, entries[i].PlayerID); err == nil {
			entries[i].Name = name
		}
	}
	return entries, nil
}
