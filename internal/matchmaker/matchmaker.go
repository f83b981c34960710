package matchmaker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/hub"
	"github.com/futduel/duel-backend/internal/types"
)

type Msg interface{ isQueueMsg() }

// Enqueue puts a participant in the waiting line for a mode and replies
// with their ticket. Re-enqueueing the same participant for the same
// mode replaces the prior ticket in place, it never duplicates it.
type Enqueue struct {
	Participant game.Participant
	Mode        string
	Outbox      chan types.ServerMessage
	Reply       chan Ticket
}

type Dequeue struct {
	Participant game.ParticipantID
	Mode        string
}

// Disconnected drops every ticket a participant holds; no session
// exists yet, so nothing else happens.
type Disconnected struct{ Participant game.ParticipantID }

type GetQueue struct {
	Mode  string
	Reply chan int
}

type Shutdown struct{}

func (Enqueue) isQueueMsg()      {}
func (Dequeue) isQueueMsg()      {}
func (Disconnected) isQueueMsg() {}
func (GetQueue) isQueueMsg()     {}
func (Shutdown) isQueueMsg()     {}

type Ticket struct {
	ID          string
	Participant game.ParticipantID
	Mode        string
	EnqueuedAt  time.Time
}

type waiting struct {
	ticket      Ticket
	participant game.Participant
	outbox      chan types.ServerMessage
}

// Matchmaker pairs waiting tickets first-available within a mode. All
// queue mutation happens on the loop goroutine, so a participant can
// never be paired twice.
type Matchmaker struct {
	inbox  chan Msg
	queues map[string][]waiting
	hub    *hub.Hub
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, h *hub.Hub, logger *zap.Logger) *Matchmaker {
	ctx, cancel := context.WithCancel(parent)
	m := &Matchmaker{
		inbox:  make(chan Msg, 64),
		queues: make(map[string][]waiting),
		hub:    h,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go m.loop()
	return m
}

func (m *Matchmaker) Inbox() chan<- Msg { return m.inbox }

func (m *Matchmaker) loop() {
	for {
		select {
		case <-m.ctx.Done():
			return

		case msg := <-m.inbox:
			switch msg := msg.(type) {
			case Enqueue:
				msg.Reply <- m.enqueue(msg)
			case Dequeue:
				m.remove(msg.Mode, msg.Participant)
			case Disconnected:
				for mode := range m.queues {
					m.remove(mode, msg.Participant)
				}
			case GetQueue:
				msg.Reply <- len(m.queues[msg.Mode])
			case Shutdown:
				m.cancel()
				return
			}
		}
	}
}

func (m *Matchmaker) enqueue(msg Enqueue) Ticket {
	t := Ticket{
		ID:          uuid.NewString(),
		Participant: msg.Participant.ID,
		Mode:        msg.Mode,
		EnqueuedAt:  time.Now(),
	}
	w := waiting{ticket: t, participant: msg.Participant, outbox: msg.Outbox}

	q := m.queues[msg.Mode]
	replaced := false
	for i := range q {
		if q[i].ticket.Participant == msg.Participant.ID {
			q[i] = w
			replaced = true
			break
		}
	}
	if !replaced {
		q = append(q, w)
	}
	m.queues[msg.Mode] = q

	if len(q) >= 2 {
		m.pair(msg.Mode)
	} else {
		m.send(w.outbox, types.ServerMessage{Type: types.MsgSearching, QueuePosition: len(q)})
	}
	return t
}

// pair pops the two oldest tickets and hands them to the hub. Removal
// and session creation happen before anything else is processed, so a
// waiting participant cannot be matched into two sessions.
func (m *Matchmaker) pair(mode string) {
	q := m.queues[mode]
	a, b := q[0], q[1]
	m.queues[mode] = q[2:]

	clients := map[game.ParticipantID]chan types.ServerMessage{
		a.participant.ID: a.outbox,
		b.participant.ID: b.outbox,
	}
	reply := make(chan string, 1)
	select {
	case m.hub.Inbox() <- hub.CreateSession{
		Players: [2]game.Participant{a.participant, b.participant},
		Mode:    mode,
		Clients: clients,
		Reply:   reply,
	}:
	case <-m.ctx.Done():
		return
	}
	var sessionID string
	select {
	case sessionID = <-reply:
	case <-m.ctx.Done():
		return
	}

	m.logger.Info("match created",
		zap.String("session_id", sessionID),
		zap.String("mode", mode),
		zap.Duration("wait_a", time.Since(a.ticket.EnqueuedAt)),
		zap.Duration("wait_b", time.Since(b.ticket.EnqueuedAt)))
}

func (m *Matchmaker) remove(mode string, pid game.ParticipantID) {
	q := m.queues[mode]
	for i := range q {
		if q[i].ticket.Participant == pid {
			m.queues[mode] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

func (m *Matchmaker) send(ch chan types.ServerMessage, msg types.ServerMessage) {
	select {
	case ch <- msg:
	default:
		// Queue updates are advisory; a wedged waiting client just
		// misses them.
	}
}
