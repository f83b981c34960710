package types

import "github.com/futduel/duel-backend/internal/game"

// Event Channel wire messages: one flat tagged struct per direction,
// unused fields omitted per message type.

// Client -> coordinator message types.
const (
	MsgJoinMatchmaking  = "join_matchmaking"
	MsgLeaveMatchmaking = "leave_matchmaking"
	MsgSubmitAnswer     = "submit_answer"
	MsgUseJoker         = "use_joker"
	MsgRequestRematch   = "request_rematch"
	MsgLeaveSession     = "leave_session"
	MsgRejoinSession    = "rejoin_session"
)

type ClientMessage struct {
	Type      string         `json:"type"`
	Mode      string         `json:"mode,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Answer    string         `json:"answer,omitempty"`
	Joker     game.JokerType `json:"joker_type,omitempty"`
}

// Coordinator -> client message types.
const (
	MsgSearching           = "searching"
	MsgMatchFound          = "match_found"
	MsgNewRound            = "new_round"
	MsgAnswerAccepted      = "answer_accepted"
	MsgAnswerRejected      = "answer_rejected"
	MsgRoundResult         = "round_result"
	MsgJokerApplied        = "joker_applied"
	MsgJokerRejected       = "joker_rejected"
	MsgOpponentLeft        = "opponent_left"
	MsgOpponentReconnected = "opponent_reconnected"
	MsgRematchAccepted     = "rematch_accepted"
	MsgGameOver            = "game_over"
	MsgStateSnapshot       = "state"
	MsgError               = "error"
)

type ServerMessage struct {
	Type          string            `json:"type"`
	QueuePosition int               `json:"queue_position,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	Opponent      *game.Participant `json:"opponent,omitempty"`
	TotalRounds   int               `json:"total_rounds,omitempty"`

	RoundNumber int          `json:"round_number,omitempty"`
	Prompt      *game.Prompt `json:"prompt,omitempty"`
	TimeLimit   int          `json:"time_limit_seconds,omitempty"`

	Result *game.RoundResult `json:"result,omitempty"`

	Joker      game.JokerType `json:"joker_type,omitempty"`
	By         string         `json:"by,omitempty"`
	Eliminated []string       `json:"eliminated_options,omitempty"`
	ExtraTime  int            `json:"extra_time_seconds,omitempty"`
	Hint       string         `json:"hint,omitempty"`

	Outcome        *game.Outcome `json:"outcome,omitempty"`
	RewardsPending bool          `json:"rewards_pending,omitempty"`

	Snapshot *Snapshot `json:"snapshot,omitempty"`

	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the coordinator's view of a session, resent on rejoin so a
// reconnecting client can resume mid-round.
type Snapshot struct {
	SessionID   string                                        `json:"session_id"`
	Mode        string                                        `json:"mode"`
	Players     [2]game.Participant                           `json:"players"`
	RoundNumber int                                           `json:"round_number"`
	TotalRounds int                                           `json:"total_rounds"`
	Scores      map[game.ParticipantID]int                    `json:"scores"`
	Streaks     map[game.ParticipantID]int                    `json:"streaks"`
	Jokers      map[game.ParticipantID]map[game.JokerType]int `json:"jokers"`
	Prompt      *game.Prompt                                  `json:"prompt,omitempty"`
	Eliminated  []string                                      `json:"eliminated_options,omitempty"`
	RemainingMS int64                                         `json:"remaining_ms"`
	Phase       game.Phase                                    `json:"phase"`
}
