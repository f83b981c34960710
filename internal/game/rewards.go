package game

import "math"

// Reward payout tables, ported from the shared game-systems config of
// the original product: league ladders keyed by ELO band, win-streak
// bonuses, and a classic K=32 ELO exchange.

type League struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MinElo      int    `json:"min_elo"`
	MaxElo      int    `json:"max_elo"`
	CoinsPerWin int    `json:"coins_per_win"`
	XPPerWin    int    `json:"xp_per_win"`
}

var Leagues = []League{
	{ID: "bronze", Name: "Bronze", MinElo: 0, MaxElo: 999, CoinsPerWin: 10, XPPerWin: 25},
	{ID: "silver", Name: "Silver", MinElo: 1000, MaxElo: 1499, CoinsPerWin: 15, XPPerWin: 35},
	{ID: "gold", Name: "Gold", MinElo: 1500, MaxElo: 1999, CoinsPerWin: 25, XPPerWin: 50},
	{ID: "elite", Name: "Elite", MinElo: 2000, MaxElo: 2499, CoinsPerWin: 40, XPPerWin: 75},
	{ID: "legend", Name: "Legend", MinElo: 2500, MaxElo: 9999, CoinsPerWin: 60, XPPerWin: 100},
}

func LeagueFor(elo int) League {
	for _, l := range Leagues {
		if elo >= l.MinElo && elo <= l.MaxElo {
			return l
		}
	}
	return Leagues[0]
}

type StreakBonus struct {
	Streak     int
	Coins      int
	XP         int
	Multiplier float64
}

// winStreakBonuses is ordered descending; the first threshold the streak
// clears applies.
var winStreakBonuses = []StreakBonus{
	{Streak: 10, Coins: 200, XP: 300, Multiplier: 3.0},
	{Streak: 7, Coins: 100, XP: 150, Multiplier: 2.5},
	{Streak: 5, Coins: 50, XP: 75, Multiplier: 2.0},
	{Streak: 3, Coins: 20, XP: 30, Multiplier: 1.5},
}

func WinStreakBonus(streak int) (StreakBonus, bool) {
	for _, b := range winStreakBonuses {
		if streak >= b.Streak {
			return b, true
		}
	}
	return StreakBonus{}, false
}

const eloK = 32

// EloChange returns the winner's gain and the loser's (negative) loss.
func EloChange(winnerElo, loserElo int) (int, int) {
	expected := 1 / (1 + math.Pow(10, float64(loserElo-winnerElo)/400))
	gain := int(math.Round(eloK * (1 - expected)))
	loss := int(math.Round(eloK * (0 - (1 - expected))))
	return gain, loss
}

// PlayerStats is the slice of a profile the reward computation needs,
// captured when the session is created so payouts stay a pure function
// of session state.
type PlayerStats struct {
	Elo       int
	WinStreak int
}

type Reward struct {
	Coins    int `json:"coins"`
	XP       int `json:"xp"`
	EloDelta int `json:"elo_delta"`
}

type Outcome struct {
	Winner      *ParticipantID           `json:"winner"`
	FinalScores map[ParticipantID]int    `json:"final_scores"`
	TotalRounds int                      `json:"total_rounds"`
	Rewards     map[ParticipantID]Reward `json:"rewards"`
}

const (
	consolationCoins = 5
	consolationXP    = 10
)

// ResolveOutcome finalizes a finished session. It is deterministic in
// (state, stats): retrying persistence never changes the payout.
func ResolveOutcome(s State, stats map[ParticipantID]PlayerStats) Outcome {
	if s.Phase != PhaseFinished {
		panic("game: resolve outcome on unfinished session")
	}

	var winner *ParticipantID
	a, b := s.Players[0].ID, s.Players[1].ID
	switch {
	case s.Scores[a] > s.Scores[b]:
		winner = &a
	case s.Scores[b] > s.Scores[a]:
		winner = &b
	}
	return outcomeFor(s, winner, stats)
}

// ForfeitOutcome finalizes a session abandoned past the disconnect grace
// window: the remaining participant wins regardless of score.
func ForfeitOutcome(s State, winner ParticipantID, stats map[ParticipantID]PlayerStats) Outcome {
	return outcomeFor(s, &winner, stats)
}

func outcomeFor(s State, winner *ParticipantID, stats map[ParticipantID]PlayerStats) Outcome {
	a, b := s.Players[0].ID, s.Players[1].ID
	out := Outcome{
		Winner:      winner,
		FinalScores: map[ParticipantID]int{a: s.Scores[a], b: s.Scores[b]},
		TotalRounds: s.TotalRounds,
		Rewards:     map[ParticipantID]Reward{},
	}

	if out.Winner == nil {
		// Draw: half a win's purse each, ratings untouched.
		for _, id := range []ParticipantID{a, b} {
			l := LeagueFor(stats[id].Elo)
			out.Rewards[id] = Reward{
				Coins: max(l.CoinsPerWin/2, consolationCoins),
				XP:    max(l.XPPerWin/2, consolationXP),
			}
		}
		return out
	}

	won := *out.Winner
	lost := b
	if won == b {
		lost = a
	}

	gain, loss := EloChange(stats[won].Elo, stats[lost].Elo)

	l := LeagueFor(stats[won].Elo)
	coins, xp := l.CoinsPerWin, l.XPPerWin
	if bonus, ok := WinStreakBonus(stats[won].WinStreak + 1); ok {
		coins = int(float64(coins+bonus.Coins) * bonus.Multiplier)
		xp = int(float64(xp+bonus.XP) * bonus.Multiplier)
	}
	out.Rewards[won] = Reward{Coins: coins, XP: xp, EloDelta: gain}
	out.Rewards[lost] = Reward{Coins: consolationCoins, XP: consolationXP, EloDelta: loss}
	return out
}
