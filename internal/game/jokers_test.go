package game

import (
	"errors"
	"testing"
	"time"
)

func useJoker(s State, pid ParticipantID, j JokerType) ([]Event, State, error) {
	return Apply(s, Command{Type: CmdUseJoker, Participant: pid, Joker: j, At: time.Now()})
}

func TestJoker_EmptyInventoryRejected(t *testing.T) {
	// Scenario C: zero inventory rejects and changes nothing.
	s := activeState(t, 10)
	s.Jokers["alice"][JokerTimeExtend] = 0
	deadline := s.Round.Deadline

	_, after, err := useJoker(s, "alice", JokerTimeExtend)
	if !errors.Is(err, ErrNoInventory) {
		t.Fatalf("want ErrNoInventory, got %v", err)
	}
	if after.Jokers["alice"][JokerTimeExtend] != 0 {
		t.Fatalf("inventory must stay at zero")
	}
	if !after.Round.Deadline.Equal(deadline) {
		t.Fatalf("rejected joker must not move the deadline")
	}
}

func TestJoker_SingleDecrement(t *testing.T) {
	s := activeState(t, 10)
	before := s.Jokers["bob"][JokerRevealHint]

	_, s, err := useJoker(s, "bob", JokerRevealHint)
	if err != nil {
		t.Fatalf("reveal hint: %v", err)
	}
	if got := s.Jokers["bob"][JokerRevealHint]; got != before-1 {
		t.Fatalf("want inventory %d, got %d", before-1, got)
	}
	if s.Jokers["alice"][JokerRevealHint] != before {
		t.Fatalf("opponent inventory must be untouched")
	}
}

func TestTimeExtend(t *testing.T) {
	s := activeState(t, 10)
	deadline := s.Round.Deadline

	events, s, err := useJoker(s, "alice", JokerTimeExtend)
	if err != nil {
		t.Fatalf("time extend: %v", err)
	}
	if !s.Round.Deadline.Equal(deadline.Add(TimeExtendBy)) {
		t.Fatalf("want deadline +%v, got %v", TimeExtendBy, s.Round.Deadline)
	}
	if events[0].ExtraTime != TimeExtendBy {
		t.Fatalf("event must carry the extension")
	}

	_, _, err = useJoker(s, "alice", JokerTimeExtend)
	if !errors.Is(err, ErrJokerUsedThisRound) {
		t.Fatalf("second extend in one round: want ErrJokerUsedThisRound, got %v", err)
	}
	// The opponent is still entitled to their own extension.
	if _, _, err := useJoker(s, "bob", JokerTimeExtend); err != nil {
		t.Fatalf("opponent extend: %v", err)
	}
}

func TestEliminateTwo(t *testing.T) {
	s := activeState(t, 10)

	events, s, err := useJoker(s, "alice", JokerEliminateTwo)
	if err != nil {
		t.Fatalf("eliminate: %v", err)
	}
	gone := events[0].Eliminated
	if len(gone) != 2 {
		t.Fatalf("want 2 eliminated, got %v", gone)
	}
	for _, opt := range gone {
		if answerMatches(opt, s.Round.Prompt.Answer) {
			t.Fatalf("correct answer %q must never be eliminated", opt)
		}
	}
	if s.Round.Assists["alice"] != 1 {
		t.Fatalf("elimination must count as an assist")
	}

	// 6 options, 2 gone: a second elimination would leave fewer than two
	// standing past the removal, so bob's attempt still works (4-2=2)...
	if _, s, err = useJoker(s, "bob", JokerEliminateTwo); err != nil {
		t.Fatalf("bob eliminate: %v", err)
	}
	if len(s.Round.Eliminated) != 4 {
		t.Fatalf("want 4 eliminated total, got %v", s.Round.Eliminated)
	}
}

func TestEliminateTwo_TooFewOptions(t *testing.T) {
	s := NewState("career_path", [2]Participant{alice, bob}, 10)
	s = startRound(t, s, Prompt{
		Question: "q",
		Options:  []string{"Ronaldo", "Figo", "Nani"},
		Answer:   "Ronaldo",
	})

	_, after, err := useJoker(s, "alice", JokerEliminateTwo)
	if !errors.Is(err, ErrTooFewOptionsLeft) {
		t.Fatalf("want ErrTooFewOptionsLeft, got %v", err)
	}
	if after.Jokers["alice"][JokerEliminateTwo] != StartingJokers()[JokerEliminateTwo] {
		t.Fatalf("failed elimination must not spend the joker")
	}
}

func TestEliminateTwo_OpenAnswerRejected(t *testing.T) {
	s := NewState("career_path", [2]Participant{alice, bob}, 10)
	s = startRound(t, s, Prompt{Question: "q", Answer: "Ronaldo"})

	if _, _, err := useJoker(s, "alice", JokerEliminateTwo); !errors.Is(err, ErrNotMultipleChoice) {
		t.Fatalf("want ErrNotMultipleChoice, got %v", err)
	}
}

func TestRevealHint_OrderAndExhaustion(t *testing.T) {
	s := activeState(t, 10)

	events, s, err := useJoker(s, "alice", JokerRevealHint)
	if err != nil {
		t.Fatalf("first hint: %v", err)
	}
	if events[0].Hint != "Portuguese winger" {
		t.Fatalf("hints must come in order, got %q", events[0].Hint)
	}
	events, s, err = useJoker(s, "alice", JokerRevealHint)
	if err != nil {
		t.Fatalf("second hint: %v", err)
	}
	if events[0].Hint != "Wore number 7" {
		t.Fatalf("want second hint, got %q", events[0].Hint)
	}

	if _, _, err := useJoker(s, "alice", JokerRevealHint); !errors.Is(err, ErrNoHintsLeft) {
		t.Fatalf("want ErrNoHintsLeft, got %v", err)
	}
	// Reveals are per participant; bob still starts from the first hint.
	events, _, err = useJoker(s, "bob", JokerRevealHint)
	if err != nil {
		t.Fatalf("bob hint: %v", err)
	}
	if events[0].Hint != "Portuguese winger" {
		t.Fatalf("bob must get the first hint, got %q", events[0].Hint)
	}
}

func TestSkipQuestion(t *testing.T) {
	s := activeState(t, 10)
	s.Streaks["alice"] = 4

	_, s, err := useJoker(s, "alice", JokerSkipQuestion)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if _, _, err := Apply(s, Command{Type: CmdSubmitAnswer, Participant: "alice", Answer: "Ronaldo", At: time.Now()}); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("skip must count as the participant's answer, got %v", err)
	}

	events, s, err := Apply(s, Command{Type: CmdSubmitAnswer, Participant: "bob", Answer: "Ronaldo", At: time.Now()})
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	var result *RoundResult
	for _, ev := range events {
		if ev.Type == EvtRoundResolved {
			result = ev.Result
		}
	}
	if result == nil {
		t.Fatalf("skip plus answer must close the round")
	}
	if !result.Participants["alice"].Skipped {
		t.Fatalf("result must flag the skip")
	}
	if result.Participants["alice"].Points != 0 {
		t.Fatalf("skip awards no points")
	}
	if s.Streaks["alice"] != 4 {
		t.Fatalf("skip must preserve the streak, got %d", s.Streaks["alice"])
	}
}

func TestSkipQuestion_AfterAnswerRejected(t *testing.T) {
	s := activeState(t, 10)
	_, s, err := Apply(s, Command{Type: CmdSubmitAnswer, Participant: "alice", Answer: "Figo", At: time.Now()})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, _, err := useJoker(s, "alice", JokerSkipQuestion); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("want ErrAlreadyAnswered, got %v", err)
	}
}
