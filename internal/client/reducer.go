package client

import (
	"fmt"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/types"
)

// reduceServer folds one coordinator event into the state. Round and
// match transitions are driven entirely by server events; the reducer
// never decides on its own that a match is over.
func reduceServer(s *State, msg types.ServerMessage) {
	switch msg.Type {
	case types.MsgSearching:
		s.QueuePosition = msg.QueuePosition

	case types.MsgMatchFound:
		resetMatch(s)
		s.Phase = PhaseMatched
		s.SessionID = msg.SessionID
		s.TotalRounds = msg.TotalRounds
		if msg.Opponent != nil {
			s.Opponent = *msg.Opponent
		}

	case types.MsgNewRound:
		s.Phase = PhasePlaying
		s.RoundNumber = msg.RoundNumber
		s.Prompt = msg.Prompt
		s.Remaining = msg.TimeLimit
		s.AnswerLocked = false
		s.Eliminated = nil
		s.Hints = nil
		s.LastResult = nil
		s.Notice = ""

	case types.MsgAnswerAccepted:
		// Lock was already taken on send; nothing to reconcile.

	case types.MsgAnswerRejected:
		// A rejected answer stays locked: the round already recorded
		// (or refused) our one submission.
		s.Notice = msg.Reason

	case types.MsgJokerApplied:
		mine := msg.By == string(s.Self)
		if mine {
			jc := s.Jokers[msg.Joker]
			if jc.Pending > 0 {
				jc.Pending--
			}
			if jc.Confirmed > 0 {
				jc.Confirmed--
			}
			s.Jokers[msg.Joker] = jc
		} else {
			s.Notice = fmt.Sprintf("opponent used %s", msg.Joker)
		}
		if len(msg.Eliminated) > 0 {
			s.Eliminated = append(s.Eliminated, msg.Eliminated...)
		}
		if msg.ExtraTime > 0 {
			s.Remaining += msg.ExtraTime
		}
		if msg.Hint != "" {
			s.Hints = append(s.Hints, msg.Hint)
		}

	case types.MsgJokerRejected:
		jc := s.Jokers[msg.Joker]
		if jc.Pending > 0 {
			jc.Pending--
		}
		s.Jokers[msg.Joker] = jc
		s.Notice = msg.Reason

	case types.MsgRoundResult:
		s.Phase = PhaseRoundResult
		s.LastResult = msg.Result
		if msg.Result != nil {
			s.Scores = msg.Result.Scores
			s.Streaks = map[game.ParticipantID]int{}
			for id, pr := range msg.Result.Participants {
				s.Streaks[id] = pr.Streak
			}
		}

	case types.MsgGameOver:
		s.Phase = PhaseGameOver
		s.Outcome = msg.Outcome
		s.RewardsPending = msg.RewardsPending
		if msg.Outcome != nil {
			s.Scores = msg.Outcome.FinalScores
		}

	case types.MsgOpponentLeft:
		s.OpponentGone = true
		s.Notice = "opponent disconnected, waiting"

	case types.MsgOpponentReconnected:
		s.OpponentGone = false
		s.Notice = ""

	case types.MsgRematchAccepted:
		// Negotiated restart: back to the top of the cycle. The new
		// session announces itself with a fresh match_found.
		resetMatch(s)
		s.Phase = PhaseSearching

	case types.MsgStateSnapshot:
		if msg.Snapshot != nil {
			reconcile(s, msg.Snapshot)
		}

	case types.MsgError:
		s.Notice = msg.Error
	}
}

// reduceTick drives the one authoritative countdown. Presentation-only
// effects (shake, vibration) are reactions to Remaining, not timers of
// their own.
func reduceTick(s *State) {
	if s.Phase == PhasePlaying && s.Remaining > 0 {
		s.Remaining--
	}
	if s.Phase == PhaseWaiting && s.WaitRemaining > 0 {
		s.WaitRemaining--
		if s.WaitRemaining == 0 {
			s.Notice = "connection not restored"
		}
	}
}

func reduceChannelDown(s *State, wait int) {
	s.ChannelDown = true
	if s.Phase == PhasePlaying || s.Phase == PhaseRoundResult {
		s.Phase = PhaseWaiting
		s.WaitRemaining = wait
		s.Notice = "connection lost, waiting"
	}
}

// reconcile replaces optimistic local state with the coordinator's
// snapshot after a rejoin. Confirmed counters take the server values;
// nothing is pending anymore.
func reconcile(s *State, snap *types.Snapshot) {
	s.ChannelDown = false
	s.SessionID = snap.SessionID
	s.TotalRounds = snap.TotalRounds
	s.RoundNumber = snap.RoundNumber
	s.Scores = snap.Scores
	s.Streaks = snap.Streaks
	for _, p := range snap.Players {
		if p.ID != s.Self {
			s.Opponent = p
		}
	}
	s.Jokers = map[game.JokerType]JokerCount{}
	for j, n := range snap.Jokers[s.Self] {
		s.Jokers[j] = JokerCount{Confirmed: n}
	}

	switch snap.Phase {
	case game.PhaseRoundActive:
		s.Phase = PhasePlaying
		s.Prompt = snap.Prompt
		s.Eliminated = snap.Eliminated
		s.Remaining = int(snap.RemainingMS / 1000)
		s.AnswerLocked = false
	case game.PhaseFinished:
		s.Phase = PhaseGameOver
	default:
		s.Phase = PhaseRoundResult
	}
}

func resetMatch(s *State) {
	s.SessionID = ""
	s.TotalRounds = 0
	s.RoundNumber = 0
	s.Prompt = nil
	s.Remaining = 0
	s.Eliminated = nil
	s.Hints = nil
	s.AnswerLocked = false
	s.Scores = map[game.ParticipantID]int{}
	s.Streaks = map[game.ParticipantID]int{}
	s.Jokers = map[game.JokerType]JokerCount{}
	for j, n := range game.StartingJokers() {
		s.Jokers[j] = JokerCount{Confirmed: n}
	}
	s.LastResult = nil
	s.Outcome = nil
	s.RewardsPending = false
	s.OpponentGone = false
	s.WaitRemaining = 0
	s.RematchRequested = false
	s.QueuePosition = 0
	s.Notice = ""
}
