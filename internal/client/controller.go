package client

import (
	"sync"
	"time"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/types"
)

// Conn is the Event Channel handle the controller plays over. It is
// injected and scoped to the session view; the controller owns no
// global socket. A closed Events channel means the connection dropped;
// reconnecting is the caller's job.
type Conn interface {
	Send(msg types.ClientMessage) error
	Events() <-chan types.ServerMessage
	Close() error
}

type Phase string

const (
	PhaseSearching   Phase = "searching"
	PhaseMatched     Phase = "matched"
	PhasePlaying     Phase = "playing"
	PhaseRoundResult Phase = "round_result"
	PhaseGameOver    Phase = "game_over"
	// PhaseWaiting is the bounded "connection lost, waiting" state. The
	// controller never fabricates a result here; the coordinator
	// decides and a game_over arrives after a rejoin, or the view is
	// torn down.
	PhaseWaiting Phase = "waiting"
)

// JokerCount is the two-phase inventory counter: Confirmed is what the
// server has acknowledged, Pending counts optimistic decrements in
// flight. The presentation shows Remaining.
type JokerCount struct {
	Confirmed int
	Pending   int
}

func (j JokerCount) Remaining() int { return j.Confirmed - j.Pending }

// State is the single snapshot the presentation layer renders. All
// fields are copies; mutating a snapshot has no effect on the
// controller.
type State struct {
	Phase       Phase
	SessionID   string
	Self        game.ParticipantID
	Opponent    game.Participant
	TotalRounds int

	RoundNumber  int
	Prompt       *game.Prompt
	Remaining    int // seconds left on the authoritative countdown
	Eliminated   []string
	Hints        []string
	AnswerLocked bool

	Scores  map[game.ParticipantID]int
	Streaks map[game.ParticipantID]int
	Jokers  map[game.JokerType]JokerCount

	LastResult     *game.RoundResult
	Outcome        *game.Outcome
	RewardsPending bool

	OpponentGone     bool
	ChannelDown      bool
	WaitRemaining    int
	RematchRequested bool
	QueuePosition    int
	Notice           string
}

type intent struct {
	kind   string
	answer string
	joker  game.JokerType
}

const (
	intentSubmit  = "submit"
	intentJoker   = "joker"
	intentRematch = "rematch"
	intentLeave   = "leave"
)

// Controller is the per-participant session state machine. Inbound
// events, local ticks and user intents are serialized into the one loop
// goroutine; Snapshot is the only concurrent read.
type Controller struct {
	conn Conn
	self game.ParticipantID
	mode string

	mu    sync.RWMutex
	state State

	intents   chan intent
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once

	disconnectWait int
}

func New(conn Conn, self game.ParticipantID, mode string, disconnectWait time.Duration) *Controller {
	c := &Controller{
		conn:           conn,
		self:           self,
		mode:           mode,
		intents:        make(chan intent, 8),
		ticker:         time.NewTicker(time.Second),
		done:           make(chan struct{}),
		disconnectWait: int(disconnectWait / time.Second),
	}
	c.state = State{Phase: PhaseSearching, Self: self}
	return c
}

// Start joins matchmaking and runs the reducer until Close.
func (c *Controller) Start() error {
	if err := c.conn.Send(types.ClientMessage{Type: types.MsgJoinMatchmaking, Mode: c.mode}); err != nil {
		return err
	}
	go c.loop()
	return nil
}

func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SubmitAnswer locks further submissions immediately; the lock is taken
// before the send so latency cannot produce a duplicate.
func (c *Controller) SubmitAnswer(text string) { c.post(intent{kind: intentSubmit, answer: text}) }

func (c *Controller) UseJoker(j game.JokerType) { c.post(intent{kind: intentJoker, joker: j}) }

func (c *Controller) RequestRematch() { c.post(intent{kind: intentRematch}) }

func (c *Controller) LeaveSession() { c.post(intent{kind: intentLeave}) }

// Close tears the controller down: timer stopped, channel unsubscribed.
// Safe to call any number of times.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ticker.Stop()
		_ = c.conn.Close()
	})
}

func (c *Controller) post(i intent) {
	select {
	case c.intents <- i:
	case <-c.done:
	}
}

func (c *Controller) loop() {
	events := c.conn.Events()
	for {
		select {
		case <-c.done:
			return

		case msg, ok := <-events:
			if !ok {
				c.update(func(s *State) { reduceChannelDown(s, c.disconnectWait) })
				events = nil // stop selecting on the dead channel
				continue
			}
			c.update(func(s *State) { reduceServer(s, msg) })

		case <-c.ticker.C:
			c.update(reduceTick)

		case i := <-c.intents:
			c.handleIntent(i)
		}
	}
}

func (c *Controller) update(f func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.state)
}

func (c *Controller) handleIntent(i intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.state

	switch i.kind {
	case intentSubmit:
		if s.Phase != PhasePlaying || s.AnswerLocked {
			return
		}
		s.AnswerLocked = true
		_ = c.conn.Send(types.ClientMessage{Type: types.MsgSubmitAnswer, SessionID: s.SessionID, Answer: i.answer})

	case intentJoker:
		if s.Phase != PhasePlaying {
			return
		}
		jc := s.Jokers[i.joker]
		if jc.Remaining() <= 0 {
			return
		}
		jc.Pending++
		s.Jokers[i.joker] = jc
		_ = c.conn.Send(types.ClientMessage{Type: types.MsgUseJoker, SessionID: s.SessionID, Joker: i.joker})

	case intentRematch:
		if s.Phase != PhaseGameOver || s.RematchRequested {
			return
		}
		s.RematchRequested = true
		_ = c.conn.Send(types.ClientMessage{Type: types.MsgRequestRematch, SessionID: s.SessionID})

	case intentLeave:
		if s.SessionID != "" {
			_ = c.conn.Send(types.ClientMessage{Type: types.MsgLeaveSession, SessionID: s.SessionID})
		}
	}
}
