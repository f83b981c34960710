package game

import (
	"errors"
	"strings"
	"time"
)

var ErrRoundNotActive = errors.New("round not active")
var ErrAlreadyAnswered = errors.New("already answered this round")
var ErrTooLate = errors.New("answer arrived after the deadline")
var ErrNoInventory = errors.New("joker inventory is empty")
var ErrJokerUsedThisRound = errors.New("joker already used this round")
var ErrNotMultipleChoice = errors.New("joker requires a multiple-choice round")
var ErrTooFewOptionsLeft = errors.New("not enough options left to eliminate")
var ErrNoHintsLeft = errors.New("no hints left to reveal")
var ErrMatchFinished = errors.New("match already finished")
var ErrUnknownParticipant = errors.New("unknown participant")
var ErrUnsupportedCommand = errors.New("unsupported command")

type ParticipantID string

type Participant struct {
	ID     ParticipantID `json:"id"`
	Name   string        `json:"name"`
	Avatar string        `json:"avatar"`
}

type Phase string

const (
	PhaseRoundActive   Phase = "round_active"
	PhaseRoundResolved Phase = "round_resolved"
	PhaseFinished      Phase = "finished"
)

type JokerType string

const (
	JokerTimeExtend   JokerType = "time_extend"
	JokerEliminateTwo JokerType = "eliminate_two"
	JokerRevealHint   JokerType = "reveal_hint"
	JokerSkipQuestion JokerType = "skip_question"
)

// TimeExtendBy is the fixed extension a single TimeExtend joker grants.
const TimeExtendBy = 15 * time.Second

// StartingJokers is the inventory every participant begins a session with.
func StartingJokers() map[JokerType]int {
	return map[JokerType]int{
		JokerTimeExtend:   2,
		JokerEliminateTwo: 2,
		JokerRevealHint:   3,
		JokerSkipQuestion: 1,
	}
}

// Prompt is one question as served by the profile service. Answer is the
// canonical answer and never leaves the coordinator until resolution.
type Prompt struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Hints    []string `json:"hints,omitempty"`
	Answer   string   `json:"-"`
}

// Answer is one recorded submission. First submission wins; later ones from
// the same participant are rejected, never overwritten.
type Answer struct {
	Text    string
	At      time.Time
	Skipped bool
}

type Round struct {
	Number     int
	Prompt     Prompt
	Deadline   time.Time
	Answers    map[ParticipantID]*Answer
	Eliminated []string
	Assists    map[ParticipantID]int
	Revealed   map[ParticipantID]int
	JokersUsed map[ParticipantID]map[JokerType]bool
	Resolved   bool
}

type State struct {
	Mode        string
	Players     [2]Participant
	RoundNum    int
	TotalRounds int
	Scores      map[ParticipantID]int
	Streaks     map[ParticipantID]int
	Jokers      map[ParticipantID]map[JokerType]int
	Phase       Phase
	Round       *Round
}

func NewState(mode string, players [2]Participant, totalRounds int) State {
	s := State{
		Mode:        mode,
		Players:     players,
		TotalRounds: totalRounds,
		Scores:      map[ParticipantID]int{},
		Streaks:     map[ParticipantID]int{},
		Jokers:      map[ParticipantID]map[JokerType]int{},
		Phase:       PhaseRoundResolved,
	}
	for _, p := range players {
		s.Scores[p.ID] = 0
		s.Streaks[p.ID] = 0
		s.Jokers[p.ID] = StartingJokers()
	}
	return s
}

type CommandType string

const (
	CmdStartRound   CommandType = "StartRound"
	CmdSubmitAnswer CommandType = "SubmitAnswer"
	CmdUseJoker     CommandType = "UseJoker"
	CmdDeadline     CommandType = "Deadline"
)

// Command carries At so Apply never reads the wall clock itself.
type Command struct {
	Type        CommandType
	Participant ParticipantID
	Answer      string
	Joker       JokerType
	Prompt      Prompt
	TimeLimit   time.Duration
	At          time.Time
}

type EventType string

const (
	EvtRoundStarted   EventType = "RoundStarted"
	EvtAnswerAccepted EventType = "AnswerAccepted"
	EvtJokerApplied   EventType = "JokerApplied"
	EvtRoundResolved  EventType = "RoundResolved"
	EvtMatchFinished  EventType = "MatchFinished"
)

type Event struct {
	Type        EventType
	Participant ParticipantID
	Joker       JokerType
	Eliminated  []string
	ExtraTime   time.Duration
	Hint        string
	Result      *RoundResult
}

type ParticipantResult struct {
	Answered bool   `json:"answered"`
	Skipped  bool   `json:"skipped"`
	Correct  bool   `json:"correct"`
	Points   int    `json:"points"`
	Streak   int    `json:"streak"`
	Answer   string `json:"answer,omitempty"`
}

type RoundResult struct {
	Number        int                                   `json:"round"`
	CorrectAnswer string                                `json:"correct_answer"`
	Participants  map[ParticipantID]*ParticipantResult `json:"per_participant"`
	Scores        map[ParticipantID]int                 `json:"scores"`
}

// Apply advances the session state machine by one command. Protocol
// violations (late answer, empty inventory, wrong phase) come back as
// sentinel errors with the state unchanged; they are expected outcomes,
// not faults.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseFinished && cmd.Type != CmdDeadline {
		return nil, s, ErrMatchFinished
	}

	switch cmd.Type {
	case CmdStartRound:
		return applyStartRound(s, cmd)
	case CmdSubmitAnswer:
		return applySubmitAnswer(s, cmd)
	case CmdUseJoker:
		return applyUseJoker(s, cmd)
	case CmdDeadline:
		if s.Phase != PhaseRoundActive {
			return nil, s, ErrRoundNotActive
		}
		return resolveRound(s)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyStartRound(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseRoundActive {
		return nil, s, ErrRoundNotActive
	}
	if s.RoundNum >= s.TotalRounds {
		// The resolver flips to Finished on the last round; a start past
		// that point is a programmer error, not a client one.
		panic("game: start round past total_rounds")
	}

	newState := s
	newState.RoundNum = s.RoundNum + 1
	newState.Phase = PhaseRoundActive
	newState.Round = &Round{
		Number:     newState.RoundNum,
		Prompt:     cmd.Prompt,
		Deadline:   cmd.At.Add(cmd.TimeLimit),
		Answers:    map[ParticipantID]*Answer{},
		Assists:    map[ParticipantID]int{},
		Revealed:   map[ParticipantID]int{},
		JokersUsed: map[ParticipantID]map[JokerType]bool{},
	}
	return []Event{{Type: EvtRoundStarted}}, newState, nil
}

func applySubmitAnswer(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseRoundActive {
		return nil, s, ErrRoundNotActive
	}
	if !s.HasParticipant(cmd.Participant) {
		return nil, s, ErrUnknownParticipant
	}
	if s.Round.Answers[cmd.Participant] != nil {
		return nil, s, ErrAlreadyAnswered
	}
	if cmd.At.After(s.Round.Deadline) {
		return nil, s, ErrTooLate
	}

	s.Round.Answers[cmd.Participant] = &Answer{Text: cmd.Answer, At: cmd.At}
	events := []Event{{Type: EvtAnswerAccepted, Participant: cmd.Participant}}

	if len(s.Round.Answers) == len(s.Players) {
		more, newState, err := resolveRound(s)
		if err != nil {
			return nil, s, err
		}
		return append(events, more...), newState, nil
	}
	return events, s, nil
}

func resolveRound(s State) ([]Event, State, error) {
	newState := s
	r := newState.Round
	r.Resolved = true

	result := &RoundResult{
		Number:        r.Number,
		CorrectAnswer: r.Prompt.Answer,
		Participants:  map[ParticipantID]*ParticipantResult{},
	}

	for _, p := range newState.Players {
		pr := &ParticipantResult{}
		ans := r.Answers[p.ID]
		switch {
		case ans == nil:
			newState.Streaks[p.ID] = 0
		case ans.Skipped:
			// A spent SkipQuestion joker parks the round for its user:
			// no points, streak untouched.
			pr.Skipped = true
		case answerMatches(ans.Text, r.Prompt.Answer):
			pr.Answered = true
			pr.Correct = true
			pr.Answer = ans.Text
			newState.Streaks[p.ID]++
			pr.Points = RoundPoints(r.Assists[p.ID], newState.Streaks[p.ID])
			newState.Scores[p.ID] += pr.Points
		default:
			pr.Answered = true
			pr.Answer = ans.Text
			newState.Streaks[p.ID] = 0
		}
		pr.Streak = newState.Streaks[p.ID]
		result.Participants[p.ID] = pr
	}

	// The result outlives this call on client outboxes; it must not
	// alias the live scores map.
	result.Scores = make(map[ParticipantID]int, len(newState.Scores))
	for id, v := range newState.Scores {
		result.Scores[id] = v
	}

	events := []Event{{Type: EvtRoundResolved, Result: result}}

	if newState.RoundNum >= newState.TotalRounds {
		newState.Phase = PhaseFinished
		events = append(events, Event{Type: EvtMatchFinished})
	} else {
		newState.Phase = PhaseRoundResolved
	}
	return events, newState, nil
}

// HasParticipant reports whether id is one of the two matched players.
func (s State) HasParticipant(id ParticipantID) bool {
	return s.Players[0].ID == id || s.Players[1].ID == id
}

func answerMatches(got, canonical string) bool {
	return normalize(got) == normalize(canonical)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
