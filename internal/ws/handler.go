package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/hub"
	"github.com/futduel/duel-backend/internal/matchmaker"
	"github.com/futduel/duel-backend/internal/session"
	"github.com/futduel/duel-backend/internal/types"
)

const (
	// readTimeout doubles as the heartbeat bound: a client that sends
	// nothing (not even a ping) for this long is treated as gone.
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
)

// Handler is the Event Channel endpoint. One connection serves both
// matchmaking and any sessions the participant plays over its lifetime.
func Handler(mm *matchmaker.Matchmaker, h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := game.ParticipantID(r.URL.Query().Get("participant_id"))
		if pid == "" {
			http.Error(w, "missing participant_id", http.StatusBadRequest)
			return
		}
		participant := game.Participant{
			ID:     pid,
			Name:   r.URL.Query().Get("name"),
			Avatar: r.URL.Query().Get("avatar"),
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := logger.With(zap.String("participant", string(pid)))
		outbox := make(chan types.ServerMessage, 16)
		joined := newSessionSet()

		defer func() {
			mm.Inbox() <- matchmaker.Disconnected{Participant: pid}
			for _, id := range joined.all() {
				if s := lookup(h, id); s != nil {
					s.Inbox() <- session.Leave{Participant: pid}
				}
			}
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case msg, ok := <-outbox:
					if !ok {
						return
					}
					// A pairing reaches the client through the outbox
					// alone; record it here so an abrupt disconnect
					// still sends the session a prompt Leave.
					if msg.Type == types.MsgMatchFound {
						joined.add(msg.SessionID)
					}
					payload, _ := json.Marshal(msg)
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-writeCtx.Done():
					return
				}
			}
		}()

		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				enqueueError(outbox, "bad json")
				continue
			}
			dispatch(cm, participant, outbox, joined, mm, h, log)
		}
	}
}

// sessionSet tracks the sessions a connection is attached to. The read
// loop and the writer goroutine both record ids, so it holds a lock.
type sessionSet struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newSessionSet() *sessionSet {
	return &sessionSet{ids: map[string]bool{}}
}

func (s *sessionSet) add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.ids[id] = true
	s.mu.Unlock()
}

func (s *sessionSet) drop(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *sessionSet) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

func dispatch(cm types.ClientMessage, participant game.Participant, outbox chan types.ServerMessage,
	joined *sessionSet, mm *matchmaker.Matchmaker, h *hub.Hub, log *zap.Logger) {

	pid := participant.ID

	switch cm.Type {
	case types.MsgJoinMatchmaking:
		if cm.Mode == "" {
			enqueueError(outbox, "missing mode")
			return
		}
		reply := make(chan matchmaker.Ticket, 1)
		mm.Inbox() <- matchmaker.Enqueue{Participant: participant, Mode: cm.Mode, Outbox: outbox, Reply: reply}
		<-reply

	case types.MsgLeaveMatchmaking:
		mm.Inbox() <- matchmaker.Dequeue{Participant: pid, Mode: cm.Mode}

	case types.MsgRejoinSession:
		s := lookup(h, cm.SessionID)
		if s == nil {
			enqueueError(outbox, "session not found")
			return
		}
		joined.add(cm.SessionID)
		s.Inbox() <- session.Join{Participant: pid, Outbox: outbox}

	case types.MsgSubmitAnswer:
		forward(h, cm.SessionID, outbox, joined, session.FromClient{
			Participant: pid,
			Cmd:         game.Command{Type: game.CmdSubmitAnswer, Answer: cm.Answer, At: time.Now()},
		})

	case types.MsgUseJoker:
		forward(h, cm.SessionID, outbox, joined, session.FromClient{
			Participant: pid,
			Cmd:         game.Command{Type: game.CmdUseJoker, Joker: cm.Joker, At: time.Now()},
		})

	case types.MsgRequestRematch:
		forward(h, cm.SessionID, outbox, joined, session.RematchVote{Participant: pid})

	case types.MsgLeaveSession:
		if s := lookup(h, cm.SessionID); s != nil {
			joined.drop(cm.SessionID)
			s.Inbox() <- session.Leave{Participant: pid}
		}

	default:
		log.Debug("unknown message type", zap.String("type", cm.Type))
		enqueueError(outbox, "unknown type")
	}
}

func forward(h *hub.Hub, sessionID string, outbox chan types.ServerMessage, joined *sessionSet, msg session.Msg) {
	s := lookup(h, sessionID)
	if s == nil {
		enqueueError(outbox, "session not found")
		return
	}
	joined.add(sessionID)
	s.Inbox() <- msg
}

func lookup(h *hub.Hub, id string) *session.Session {
	if id == "" {
		return nil
	}
	reply := make(chan *session.Session, 1)
	h.Inbox() <- hub.GetSession{ID: id, Reply: reply}
	return <-reply
}

func enqueueError(outbox chan types.ServerMessage, reason string) {
	select {
	case outbox <- types.ServerMessage{Type: types.MsgError, Error: reason}:
	default:
	}
}
