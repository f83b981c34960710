package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/profile"
)

type stubProfiles struct {
	entries []profile.Entry
	err     error
	limit   int
}

func (s *stubProfiles) RandomPrompt(ctx context.Context, mode string) (game.Prompt, error) {
	return game.Prompt{}, nil
}

func (s *stubProfiles) Stats(ctx context.Context, id game.ParticipantID) (game.PlayerStats, error) {
	return game.PlayerStats{}, nil
}

func (s *stubProfiles) PersistOutcome(ctx context.Context, sessionID, mode string, outcome game.Outcome) error {
	return nil
}

func (s *stubProfiles) Leaderboard(ctx context.Context, mode string, limit int) ([]profile.Entry, error) {
	s.limit = limit
	return s.entries, s.err
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestLeaderboard(t *testing.T) {
	profiles := &stubProfiles{entries: []profile.Entry{
		{PlayerID: "alice", Name: "Alice", Elo: 1420, Rank: 1},
		{PlayerID: "bob", Name: "Bob", Elo: 1180, Rank: 2},
	}}
	h := Leaderboard(profiles, zap.NewNop())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?mode=career_path", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}
	if profiles.limit != defaultLeaderboardLimit {
		t.Fatalf("want default limit, got %d", profiles.limit)
	}

	var body struct {
		Mode    string          `json:"mode"`
		Entries []profile.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != "career_path" || len(body.Entries) != 2 || body.Entries[0].PlayerID != "alice" {
		t.Fatalf("bad payload: %+v", body)
	}
}

func TestLeaderboard_Validation(t *testing.T) {
	h := Leaderboard(&stubProfiles{}, zap.NewNop())

	cases := []struct {
		name string
		url  string
		code int
	}{
		{"missing mode", "/leaderboard", http.StatusBadRequest},
		{"limit too large", "/leaderboard?mode=career_path&limit=500", http.StatusBadRequest},
		{"limit not a number", "/leaderboard?mode=career_path&limit=ten", http.StatusBadRequest},
		{"limit zero", "/leaderboard?mode=career_path&limit=0", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rec.Code != tc.code {
				t.Fatalf("want %d, got %d", tc.code, rec.Code)
			}
		})
	}
}

func TestLeaderboard_BackendDown(t *testing.T) {
	h := Leaderboard(&stubProfiles{err: errors.New("redis down")}, zap.NewNop())
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?mode=career_path", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}
