package matchmaker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/hub"
	"github.com/futduel/duel-backend/internal/profile"
	"github.com/futduel/duel-backend/internal/session"
	"github.com/futduel/duel-backend/internal/types"
)

var (
	alice = game.Participant{ID: "alice", Name: "Alice"}
	bob   = game.Participant{ID: "bob", Name: "Bob"}
	carol = game.Participant{ID: "carol", Name: "Carol"}
)

type stubProfiles struct{}

func (stubProfiles) RandomPrompt(ctx context.Context, mode string) (game.Prompt, error) {
	return game.Prompt{Question: "q", Answer: "a"}, nil
}

func (stubProfiles) Stats(ctx context.Context, id game.ParticipantID) (game.PlayerStats, error) {
	return game.PlayerStats{Elo: 1000}, nil
}

func (stubProfiles) PersistOutcome(ctx context.Context, sessionID, mode string, outcome game.Outcome) error {
	return nil
}

func (stubProfiles) Leaderboard(ctx context.Context, mode string, limit int) ([]profile.Entry, error) {
	return nil, nil
}

func newMatchmaker(t *testing.T) *Matchmaker {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, session.DefaultConfig(), 10, stubProfiles{}, zap.NewNop())
	return New(ctx, h, zap.NewNop())
}

func enqueue(t *testing.T, m *Matchmaker, p game.Participant, mode string, outbox chan types.ServerMessage) Ticket {
	t.Helper()
	reply := make(chan Ticket, 1)
	m.Inbox() <- Enqueue{Participant: p, Mode: mode, Outbox: outbox, Reply: reply}
	select {
	case tk := <-reply:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a ticket")
	}
	return Ticket{}
}

func queueLen(t *testing.T, m *Matchmaker, mode string) int {
	t.Helper()
	reply := make(chan int, 1)
	m.Inbox() <- GetQueue{Mode: mode, Reply: reply}
	select {
	case n := <-reply:
		return n
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for queue length")
	}
	return 0
}

func recvType(t *testing.T, ch chan types.ServerMessage, want string) types.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Type == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestEnqueue_AloneKeepsSearching(t *testing.T) {
	m := newMatchmaker(t)
	outbox := make(chan types.ServerMessage, 8)

	tk := enqueue(t, m, alice, "career_path", outbox)
	if tk.ID == "" || tk.Participant != alice.ID {
		t.Fatalf("bad ticket %+v", tk)
	}

	msg := recvType(t, outbox, types.MsgSearching)
	if msg.QueuePosition != 1 {
		t.Fatalf("want position 1, got %d", msg.QueuePosition)
	}
	if queueLen(t, m, "career_path") != 1 {
		t.Fatalf("want one waiting ticket")
	}
}

func TestPairing_FIFO(t *testing.T) {
	m := newMatchmaker(t)
	aliceCh := make(chan types.ServerMessage, 8)
	bobCh := make(chan types.ServerMessage, 8)

	enqueue(t, m, alice, "career_path", aliceCh)
	enqueue(t, m, bob, "career_path", bobCh)

	a := recvType(t, aliceCh, types.MsgMatchFound)
	b := recvType(t, bobCh, types.MsgMatchFound)
	if a.SessionID == "" || a.SessionID != b.SessionID {
		t.Fatalf("pair must land in one session: %q vs %q", a.SessionID, b.SessionID)
	}
	if a.Opponent == nil || a.Opponent.ID != bob.ID {
		t.Fatalf("alice must see bob, got %+v", a.Opponent)
	}
	if b.Opponent == nil || b.Opponent.ID != alice.ID {
		t.Fatalf("bob must see alice, got %+v", b.Opponent)
	}
	if queueLen(t, m, "career_path") != 0 {
		t.Fatalf("paired tickets must leave the queue")
	}
}

func TestReenqueue_ReplacesInPlace(t *testing.T) {
	m := newMatchmaker(t)
	outbox := make(chan types.ServerMessage, 8)

	first := enqueue(t, m, alice, "career_path", outbox)
	second := enqueue(t, m, alice, "career_path", outbox)
	if first.ID == second.ID {
		t.Fatalf("re-enqueue must mint a fresh ticket")
	}
	if queueLen(t, m, "career_path") != 1 {
		t.Fatalf("re-enqueue must never duplicate the waiting entry")
	}

	// A single waiting entry means the next arrival pairs immediately.
	bobCh := make(chan types.ServerMessage, 8)
	enqueue(t, m, bob, "career_path", bobCh)
	recvType(t, outbox, types.MsgMatchFound)
	recvType(t, bobCh, types.MsgMatchFound)
}

func TestDequeue_RemovesTicket(t *testing.T) {
	m := newMatchmaker(t)
	aliceCh := make(chan types.ServerMessage, 8)
	bobCh := make(chan types.ServerMessage, 8)

	enqueue(t, m, alice, "career_path", aliceCh)
	m.Inbox() <- Dequeue{Participant: alice.ID, Mode: "career_path"}

	enqueue(t, m, bob, "career_path", bobCh)
	msg := recvType(t, bobCh, types.MsgSearching)
	if msg.QueuePosition != 1 {
		t.Fatalf("bob must wait alone after alice left, got position %d", msg.QueuePosition)
	}
}

func TestDisconnected_DropsEveryMode(t *testing.T) {
	m := newMatchmaker(t)
	outbox := make(chan types.ServerMessage, 8)

	enqueue(t, m, alice, "career_path", outbox)
	enqueue(t, m, alice, "club_trivia", outbox)
	m.Inbox() <- Disconnected{Participant: alice.ID}

	if queueLen(t, m, "career_path") != 0 || queueLen(t, m, "club_trivia") != 0 {
		t.Fatalf("disconnect must clear every ticket the participant holds")
	}
}

func TestModes_NeverCrossPair(t *testing.T) {
	m := newMatchmaker(t)
	aliceCh := make(chan types.ServerMessage, 8)
	bobCh := make(chan types.ServerMessage, 8)

	enqueue(t, m, alice, "career_path", aliceCh)
	enqueue(t, m, bob, "club_trivia", bobCh)

	if queueLen(t, m, "career_path") != 1 || queueLen(t, m, "club_trivia") != 1 {
		t.Fatalf("different modes must never pair")
	}
}

func TestThirdArrival_WaitsForFourth(t *testing.T) {
	m := newMatchmaker(t)
	chans := make([]chan types.ServerMessage, 3)
	for i, p := range []game.Participant{alice, bob, carol} {
		chans[i] = make(chan types.ServerMessage, 8)
		enqueue(t, m, p, "career_path", chans[i])
	}

	recvType(t, chans[0], types.MsgMatchFound)
	recvType(t, chans[1], types.MsgMatchFound)
	msg := recvType(t, chans[2], types.MsgSearching)
	if msg.QueuePosition != 1 {
		t.Fatalf("carol must head a fresh queue, got %d", msg.QueuePosition)
	}
	if queueLen(t, m, "career_path") != 1 {
		t.Fatalf("want exactly one waiting ticket")
	}
}
