package session

import (
	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/types"
)

type Msg interface{ isSessionMsg() }

// Join attaches (or re-attaches) a participant's event channel. On a
// rejoin the session replies with a full state snapshot so play resumes
// mid-round.
type Join struct {
	Participant game.ParticipantID
	Outbox      chan types.ServerMessage
}

func (Join) isSessionMsg() {}

// Leave detaches a participant's event channel. Mid-match it arms the
// disconnect grace timer instead of ending the session.
type Leave struct{ Participant game.ParticipantID }

func (Leave) isSessionMsg() {}

type FromClient struct {
	Participant game.ParticipantID
	Cmd         game.Command
}

func (FromClient) isSessionMsg() {}

type RematchVote struct{ Participant game.ParticipantID }

func (RematchVote) isSessionMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// View reflects internal state without data races; test-only.
type View struct {
	Phase      game.Phase
	RoundNum   int
	Scores     map[game.ParticipantID]int
	Streaks    map[game.ParticipantID]int
	Jokers     map[game.ParticipantID]map[game.JokerType]int
	NumClients int
	Outcome    *game.Outcome
}

// Internal timer and async-result messages. Generation counters follow
// the armed timers so a stale fire is dropped, never applied.

type deadlineFired struct{ gen int }

func (deadlineFired) isSessionMsg() {}

type roundPauseOver struct{ gen int }

func (roundPauseOver) isSessionMsg() {}

type graceExpired struct {
	gen         int
	Participant game.ParticipantID
}

func (graceExpired) isSessionMsg() {}

type rematchWindowClosed struct{ gen int }

func (rematchWindowClosed) isSessionMsg() {}

type lingerExpired struct{ gen int }

func (lingerExpired) isSessionMsg() {}

type statsFetched struct {
	stats map[game.ParticipantID]game.PlayerStats
}

func (statsFetched) isSessionMsg() {}

type promptFetched struct {
	prompt game.Prompt
	err    error
}

func (promptFetched) isSessionMsg() {}

type outcomePersisted struct{ err error }

func (outcomePersisted) isSessionMsg() {}
