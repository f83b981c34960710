package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/futduel/duel-backend/internal/game"
)

var ErrNoPrompt = errors.New("no prompt available for mode")

// Store is the postgres persistence layer for prompts, player profiles
// and finished outcomes.
type Store struct {
	db *gorm.DB
}

type promptRow struct {
	ID       uint   `gorm:"primaryKey"`
	Mode     string `gorm:"index"`
	Question string
	Answer   string
	Options  string // JSON-encoded []string
	Hints    string // JSON-encoded []string
}

func (promptRow) TableName() string { return "prompts" }

type playerRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Elo       int
	Coins     int
	XP        int
	WinStreak int
	Wins      int
	Losses    int
	Draws     int
	UpdatedAt time.Time
}

func (playerRow) TableName() string { return "players" }

type outcomeRow struct {
	SessionID string `gorm:"primaryKey"`
	Mode      string
	WinnerID  *string
	Scores    string // JSON-encoded map[participant]int
	Rewards   string // JSON-encoded map[participant]Reward
	CreatedAt time.Time
}

func (outcomeRow) TableName() string { return "outcomes" }

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&promptRow{}, &playerRow{}, &outcomeRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) RandomPrompt(ctx context.Context, mode string) (game.Prompt, error) {
	var row promptRow
	err := s.db.WithContext(ctx).
		Where("mode = ?", mode).
		Order("random()").
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.Prompt{}, ErrNoPrompt
	}
	if err != nil {
		return game.Prompt{}, err
	}

	p := game.Prompt{Question: row.Question, Answer: row.Answer}
	if row.Options != "" {
		_ = json.Unmarshal([]byte(row.Options), &p.Options)
	}
	if row.Hints != "" {
		_ = json.Unmarshal([]byte(row.Hints), &p.Hints)
	}
	return p, nil
}

func (s *Store) Stats(ctx context.Context, id game.ParticipantID) (game.PlayerStats, error) {
	var row playerRow
	err := s.db.WithContext(ctx).Take(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Unknown players start at the bottom of silver.
		return game.PlayerStats{Elo: 1000}, nil
	}
	if err != nil {
		return game.PlayerStats{}, err
	}
	return game.PlayerStats{Elo: row.Elo, WinStreak: row.WinStreak}, nil
}

func (s *Store) PlayerName(ctx context.Context, id string) (string, error) {
	var row playerRow
	if err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return "", err
	}
	return row.Name, nil
}

// PersistOutcome writes a finished session's outcome and applies its
// rewards to both player rows. It reports whether this call applied the
// outcome: a session id that is already stored is a no-op, so a retried
// call never double-pays.
func (s *Store) PersistOutcome(ctx context.Context, sessionID, mode string, outcome game.Outcome) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing outcomeRow
		err := tx.Take(&existing, "session_id = ?", sessionID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		scores, _ := json.Marshal(outcome.FinalScores)
		rewards, _ := json.Marshal(outcome.Rewards)
		row := outcomeRow{
			SessionID: sessionID,
			Mode:      mode,
			Scores:    string(scores),
			Rewards:   string(rewards),
			CreatedAt: time.Now(),
		}
		if outcome.Winner != nil {
			w := string(*outcome.Winner)
			row.WinnerID = &w
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		for id, reward := range outcome.Rewards {
			if err := s.applyReward(tx, id, reward, outcome.Winner); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (s *Store) applyReward(tx *gorm.DB, id game.ParticipantID, reward game.Reward, winner *game.ParticipantID) error {
	var row playerRow
	err := tx.Take(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = playerRow{ID: string(id), Elo: 1000}
	} else if err != nil {
		return err
	}

	row.Coins += reward.Coins
	row.XP += reward.XP
	row.Elo += reward.EloDelta
	if row.Elo < 0 {
		row.Elo = 0
	}
	switch {
	case winner == nil:
		row.Draws++
	case *winner == id:
		row.Wins++
		row.WinStreak++
	default:
		row.Losses++
		row.WinStreak = 0
	}
	return tx.Save(&row).Error
}
