package game

// Joker application rules. Every successful application decrements the
// requester's inventory by exactly one; every rejection leaves it
// untouched. Effects that change shared round state (eliminations, the
// deadline) are visible to both participants through the emitted event.

func applyUseJoker(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseRoundActive {
		return nil, s, ErrRoundNotActive
	}
	if !s.HasParticipant(cmd.Participant) {
		return nil, s, ErrUnknownParticipant
	}
	if s.Jokers[cmd.Participant][cmd.Joker] <= 0 {
		return nil, s, ErrNoInventory
	}

	r := s.Round
	ev := Event{Type: EvtJokerApplied, Participant: cmd.Participant, Joker: cmd.Joker}

	switch cmd.Joker {
	case JokerTimeExtend:
		if r.JokersUsed[cmd.Participant][cmd.Joker] {
			return nil, s, ErrJokerUsedThisRound
		}
		r.Deadline = r.Deadline.Add(TimeExtendBy)
		ev.ExtraTime = TimeExtendBy

	case JokerEliminateTwo:
		if len(r.Prompt.Options) == 0 {
			return nil, s, ErrNotMultipleChoice
		}
		if r.JokersUsed[cmd.Participant][cmd.Joker] {
			return nil, s, ErrJokerUsedThisRound
		}
		gone, ok := eliminateTwo(r)
		if !ok {
			return nil, s, ErrTooFewOptionsLeft
		}
		r.Eliminated = append(r.Eliminated, gone...)
		r.Assists[cmd.Participant]++
		ev.Eliminated = gone

	case JokerRevealHint:
		idx := r.Revealed[cmd.Participant]
		if idx >= len(r.Prompt.Hints) {
			return nil, s, ErrNoHintsLeft
		}
		r.Revealed[cmd.Participant] = idx + 1
		r.Assists[cmd.Participant]++
		ev.Hint = r.Prompt.Hints[idx]

	case JokerSkipQuestion:
		if r.Answers[cmd.Participant] != nil {
			return nil, s, ErrAlreadyAnswered
		}
		r.Answers[cmd.Participant] = &Answer{Skipped: true, At: cmd.At}

	default:
		return nil, s, ErrUnsupportedCommand
	}

	if r.JokersUsed[cmd.Participant] == nil {
		r.JokersUsed[cmd.Participant] = map[JokerType]bool{}
	}
	r.JokersUsed[cmd.Participant][cmd.Joker] = true
	s.Jokers[cmd.Participant][cmd.Joker]--

	events := []Event{ev}

	// A skip can be the second "answer" in, which closes the round.
	if cmd.Joker == JokerSkipQuestion && len(r.Answers) == len(s.Players) {
		more, newState, err := resolveRound(s)
		if err != nil {
			return nil, s, err
		}
		return append(events, more...), newState, nil
	}
	return events, s, nil
}

// eliminateTwo removes the first two wrong, still-standing options. The
// pool may never drop below two remaining options (the correct one plus
// at least one distractor).
func eliminateTwo(r *Round) ([]string, bool) {
	remaining := 0
	for _, opt := range r.Prompt.Options {
		if !eliminated(r, opt) {
			remaining++
		}
	}
	if remaining-2 < 2 {
		return nil, false
	}

	var gone []string
	for _, opt := range r.Prompt.Options {
		if len(gone) == 2 {
			break
		}
		if eliminated(r, opt) || answerMatches(opt, r.Prompt.Answer) {
			continue
		}
		gone = append(gone, opt)
	}
	if len(gone) < 2 {
		return nil, false
	}
	return gone, true
}

func eliminated(r *Round, opt string) bool {
	for _, e := range r.Eliminated {
		if e == opt {
			return true
		}
	}
	return false
}
