package hub

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/profile"
	"github.com/futduel/duel-backend/internal/session"
	"github.com/futduel/duel-backend/internal/types"
)

type HubMsg interface{ isHubMsg() }

// CreateSession spins up a session actor for a matched pair and replies
// with its id. Clients are the outboxes collected while the pair was
// queued (or, on a rematch, the channels of the finished session).
type CreateSession struct {
	Players [2]game.Participant
	Mode    string
	Clients map[game.ParticipantID]chan types.ServerMessage
	Reply   chan string
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type RemoveSession struct{ ID string }

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

// Hub owns the session map. Sessions are created here, looked up by the
// websocket layer, and removed once their outcome is persisted and the
// last channel has closed.
type Hub struct {
	inbox       chan HubMsg
	sessions    map[string]*session.Session
	cfg         session.Config
	totalRounds int
	profiles    profile.API
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewHub(parent context.Context, cfg session.Config, totalRounds int, profiles profile.API, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:       make(chan HubMsg, 64),
		sessions:    make(map[string]*session.Session),
		cfg:         cfg,
		totalRounds: totalRounds,
		profiles:    profiles,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg)

			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // May be nil

			case RemoveSession:
				delete(h.sessions, msg.ID)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateSession) string {
	id := uuid.NewString()
	st := game.NewState(msg.Mode, msg.Players, h.totalRounds)

	rematch := func(players [2]game.Participant, mode string, clients map[game.ParticipantID]chan types.ServerMessage) (string, error) {
		reply := make(chan string, 1)
		select {
		case h.inbox <- CreateSession{Players: players, Mode: mode, Clients: clients, Reply: reply}:
		case <-h.ctx.Done():
			return "", h.ctx.Err()
		}
		select {
		case newID := <-reply:
			return newID, nil
		case <-h.ctx.Done():
			return "", h.ctx.Err()
		}
	}
	onRemove := func(sessionID string) {
		select {
		case h.inbox <- RemoveSession{ID: sessionID}:
		case <-h.ctx.Done():
		}
	}

	s := session.New(h.ctx, id, st, msg.Clients, h.cfg, h.profiles, rematch, onRemove, h.logger)
	h.sessions[id] = s
	h.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("mode", msg.Mode),
		zap.String("p1", string(msg.Players[0].ID)),
		zap.String("p2", string(msg.Players[1].ID)))
	return id
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
	}
	clear(h.sessions)
	h.cancel()
}
