package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/futduel/duel-backend/internal/game"
	"github.com/futduel/duel-backend/internal/profile"
	"github.com/futduel/duel-backend/internal/types"
)

// Config carries the timing knobs a session needs. Values come from the
// process config; tests shrink them to keep runs fast.
type Config struct {
	RoundTime      time.Duration
	RoundPause     time.Duration
	DisconnectWait time.Duration
	RematchWindow  time.Duration
	// Linger bounds how long a finished session stays registered while
	// clients sit on the game-over screen. Zero disables the timer.
	Linger time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoundTime:      30 * time.Second,
		RoundPause:     3 * time.Second,
		DisconnectWait: 30 * time.Second,
		RematchWindow:  20 * time.Second,
		Linger:         2 * time.Minute,
	}
}

// Rematch is how a finished session asks for a successor with the same
// participants. Wired by the hub; the callback sends into the hub's own
// mailbox, so calling it from the session loop cannot deadlock.
type Rematch func(players [2]game.Participant, mode string, clients map[game.ParticipantID]chan types.ServerMessage) (string, error)

// Session is one match between exactly two participants. All mutation
// happens on the loop goroutine; the outside world only talks to the
// mailbox.
type Session struct {
	ID string

	inbox     chan Msg
	state     game.State
	stats     map[game.ParticipantID]game.PlayerStats
	clients   map[game.ParticipantID]chan types.ServerMessage
	cfg       Config
	profiles  profile.API
	rematch   Rematch
	onRemove  func(id string)
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc

	deadlineGen int
	pauseGen    int
	graceGen    map[game.ParticipantID]int
	graceArmed  map[game.ParticipantID]bool

	rematchVotes map[game.ParticipantID]bool
	rematchGen   int
	lingerGen    int

	outcome        *game.Outcome
	rewardsPending bool
}

// New starts a session actor for a freshly matched pair. The clients map
// holds the outboxes the matchmaker collected; the first round starts as
// soon as a prompt is fetched. Player ratings are snapshotted in the
// background so creation never blocks on the profile store.
func New(parent context.Context, id string, st game.State,
	clients map[game.ParticipantID]chan types.ServerMessage, cfg Config, profiles profile.API,
	rematch Rematch, onRemove func(id string), logger *zap.Logger) *Session {

	ctx, cancel := context.WithCancel(parent)
	stats := make(map[game.ParticipantID]game.PlayerStats, len(st.Players))
	for _, p := range st.Players {
		stats[p.ID] = game.PlayerStats{Elo: 1000}
	}
	s := &Session{
		ID:           id,
		inbox:        make(chan Msg, 64),
		state:        st,
		stats:        stats,
		clients:      clients,
		cfg:          cfg,
		profiles:     profiles,
		rematch:      rematch,
		onRemove:     onRemove,
		logger:       logger.With(zap.String("session_id", id)),
		ctx:          ctx,
		cancel:       cancel,
		graceGen:     map[game.ParticipantID]int{},
		graceArmed:   map[game.ParticipantID]bool{},
		rematchVotes: map[game.ParticipantID]bool{},
	}
	// Announce the pairing before the loop runs so match_found always
	// precedes the first new_round on every channel.
	s.announce()
	go s.loop()
	s.bootstrap()
	return s
}

// bootstrap snapshots both ratings and fetches the first prompt in one
// goroutine, posting in that order: the stats land before the first
// round can open, so a fast match still pays out of the real ratings.
func (s *Session) bootstrap() {
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()

		stats := make(map[game.ParticipantID]game.PlayerStats, len(s.state.Players))
		for _, p := range s.state.Players {
			ps, err := s.profiles.Stats(ctx, p.ID)
			if err != nil {
				s.logger.Warn("stats lookup failed", zap.String("participant", string(p.ID)), zap.Error(err))
				ps = game.PlayerStats{Elo: 1000}
			}
			stats[p.ID] = ps
		}
		s.post(statsFetched{stats: stats})

		p, err := s.profiles.RandomPrompt(ctx, s.state.Mode)
		s.post(promptFetched{prompt: p, err: err})
	}()
}

func (s *Session) announce() {
	for id := range s.clients {
		opponent := s.state.Players[0]
		if opponent.ID == id {
			opponent = s.state.Players[1]
		}
		opp := opponent
		s.sendTo(id, types.ServerMessage{
			Type:        types.MsgMatchFound,
			SessionID:   s.ID,
			Opponent:    &opp,
			TotalRounds: s.state.TotalRounds,
		})
	}
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)
			case Leave:
				s.handleLeave(msg.Participant)
			case FromClient:
				s.handleCommand(msg)
			case RematchVote:
				s.handleRematchVote(msg.Participant)
			case statsFetched:
				s.stats = msg.stats
			case promptFetched:
				s.handlePromptFetched(msg)
			case deadlineFired:
				if msg.gen == s.deadlineGen {
					s.applyAndEmit(game.ParticipantID(""), game.Command{Type: game.CmdDeadline, At: time.Now()})
				}
			case roundPauseOver:
				if msg.gen == s.pauseGen {
					s.fetchPrompt()
				}
			case graceExpired:
				s.handleGraceExpired(msg)
			case rematchWindowClosed:
				if msg.gen == s.rematchGen {
					clear(s.rematchVotes)
				}
			case lingerExpired:
				if msg.gen == s.lingerGen && s.outcome != nil {
					s.logger.Info("finished session expired")
					s.remove()
					return
				}
			case outcomePersisted:
				s.handlePersisted(msg.err)
			case GetState:
				msg.Reply <- View{
					Phase:      s.state.Phase,
					RoundNum:   s.state.RoundNum,
					Scores:     copyScores(s.state.Scores),
					Streaks:    copyScores(s.state.Streaks),
					Jokers:     copyJokers(s.state.Jokers),
					NumClients: len(s.clients),
					Outcome:    s.outcome,
				}
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// fetchPrompt asks the profile service for the next question off the
// loop goroutine and posts the result back as a mailbox message.
func (s *Session) fetchPrompt() {
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		p, err := s.profiles.RandomPrompt(ctx, s.state.Mode)
		s.post(promptFetched{prompt: p, err: err})
	}()
}

func (s *Session) handlePromptFetched(msg promptFetched) {
	if s.state.Phase != game.PhaseRoundResolved || s.outcome != nil {
		return
	}
	if msg.err != nil {
		s.logger.Warn("prompt fetch failed, retrying", zap.Error(msg.err))
		gen := s.pauseGen
		time.AfterFunc(2*time.Second, func() { s.post(roundPauseOver{gen: gen}) })
		return
	}

	s.applyAndEmit("", game.Command{
		Type:      game.CmdStartRound,
		Prompt:    msg.prompt,
		TimeLimit: s.cfg.RoundTime,
		At:        time.Now(),
	})
}

func (s *Session) handleCommand(msg FromClient) {
	cmd := msg.Cmd
	cmd.Participant = msg.Participant
	if cmd.At.IsZero() {
		cmd.At = time.Now()
	}
	s.applyAndEmit(msg.Participant, cmd)
}

// applyAndEmit runs one command through the state machine. Rejections go
// back to the sender alone; everything else fans out per event.
func (s *Session) applyAndEmit(sender game.ParticipantID, cmd game.Command) {
	events, newState, err := game.Apply(s.state, cmd)
	if err != nil {
		if sender != "" {
			s.sendTo(sender, rejectionFor(cmd, err))
		}
		return
	}
	s.state = newState
	for _, ev := range events {
		s.emit(ev)
	}
}

func (s *Session) emit(ev game.Event) {
	switch ev.Type {
	case game.EvtRoundStarted:
		r := s.state.Round
		prompt := r.Prompt
		s.broadcast(types.ServerMessage{
			Type:        types.MsgNewRound,
			SessionID:   s.ID,
			RoundNumber: r.Number,
			Prompt:      &prompt,
			TimeLimit:   int(s.cfg.RoundTime / time.Second),
		})
		s.armDeadline()

	case game.EvtAnswerAccepted:
		s.sendTo(ev.Participant, types.ServerMessage{
			Type:      types.MsgAnswerAccepted,
			SessionID: s.ID,
		})

	case game.EvtJokerApplied:
		base := types.ServerMessage{
			Type:       types.MsgJokerApplied,
			SessionID:  s.ID,
			Joker:      ev.Joker,
			By:         string(ev.Participant),
			Eliminated: ev.Eliminated,
			ExtraTime:  int(ev.ExtraTime / time.Second),
		}
		for id := range s.clients {
			msg := base
			if id == ev.Participant {
				// Hints are private to the spender; the opponent only
				// sees that a joker went off.
				msg.Hint = ev.Hint
			}
			s.sendTo(id, msg)
		}
		if ev.Joker == game.JokerTimeExtend {
			s.armDeadline()
		}

	case game.EvtRoundResolved:
		s.broadcast(types.ServerMessage{
			Type:      types.MsgRoundResult,
			SessionID: s.ID,
			Result:    ev.Result,
		})
		if s.state.Phase == game.PhaseRoundResolved {
			s.deadlineGen++ // disarm any pending deadline
			s.pauseGen++
			gen := s.pauseGen
			time.AfterFunc(s.cfg.RoundPause, func() { s.post(roundPauseOver{gen: gen}) })
		}

	case game.EvtMatchFinished:
		s.deadlineGen++
		s.finish(game.ResolveOutcome(s.state, s.stats))
	}
}

// armDeadline (re)arms the round timer against the current deadline. A
// new generation invalidates whatever was armed before, so a stale fire
// after a TimeExtend or resolution is dropped in the loop.
func (s *Session) armDeadline() {
	s.deadlineGen++
	gen := s.deadlineGen
	d := time.Until(s.state.Round.Deadline)
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, func() { s.post(deadlineFired{gen: gen}) })
}

func (s *Session) finish(out game.Outcome) {
	s.outcome = &out
	if s.cfg.Linger > 0 {
		s.lingerGen++
		gen := s.lingerGen
		time.AfterFunc(s.cfg.Linger, func() { s.post(lingerExpired{gen: gen}) })
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.profiles.PersistOutcome(ctx, s.ID, s.state.Mode, out)
		s.post(outcomePersisted{err: err})
	}()
}

func (s *Session) handlePersisted(err error) {
	if err != nil {
		// The outcome stands; only the payout write is behind.
		s.logger.Error("outcome persistence failed", zap.Error(err))
		s.rewardsPending = true
	}
	s.broadcast(types.ServerMessage{
		Type:           types.MsgGameOver,
		SessionID:      s.ID,
		TotalRounds:    s.state.TotalRounds,
		Outcome:        s.outcome,
		RewardsPending: s.rewardsPending,
	})
}

func (s *Session) handleJoin(msg Join) {
	if !s.state.HasParticipant(msg.Participant) {
		s.logger.Warn("join rejected, not a participant", zap.String("participant", string(msg.Participant)))
		select {
		case msg.Outbox <- types.ServerMessage{Type: types.MsgError, Error: "not a session participant"}:
		default:
		}
		return
	}
	rejoin := s.graceArmed[msg.Participant]
	s.clients[msg.Participant] = msg.Outbox
	s.graceGen[msg.Participant]++
	s.graceArmed[msg.Participant] = false

	s.sendTo(msg.Participant, types.ServerMessage{
		Type:      types.MsgStateSnapshot,
		SessionID: s.ID,
		Snapshot:  s.snapshot(),
	})
	if rejoin {
		for id := range s.clients {
			if id != msg.Participant {
				s.sendTo(id, types.ServerMessage{Type: types.MsgOpponentReconnected, SessionID: s.ID})
			}
		}
	}
}

func (s *Session) handleLeave(pid game.ParticipantID) {
	if !s.state.HasParticipant(pid) {
		return
	}
	if _, ok := s.clients[pid]; !ok {
		return
	}
	delete(s.clients, pid)

	if s.outcome != nil || s.state.Phase == game.PhaseFinished {
		if len(s.clients) == 0 {
			s.remove()
		}
		return
	}

	for id := range s.clients {
		s.sendTo(id, types.ServerMessage{Type: types.MsgOpponentLeft, SessionID: s.ID})
	}
	s.graceGen[pid]++
	s.graceArmed[pid] = true
	gen := s.graceGen[pid]
	time.AfterFunc(s.cfg.DisconnectWait, func() { s.post(graceExpired{gen: gen, Participant: pid}) })
}

func (s *Session) handleGraceExpired(msg graceExpired) {
	if msg.gen != s.graceGen[msg.Participant] || !s.graceArmed[msg.Participant] {
		return
	}
	if s.outcome != nil {
		return
	}
	s.graceArmed[msg.Participant] = false

	var winner game.ParticipantID
	for _, p := range s.state.Players {
		if p.ID != msg.Participant {
			winner = p.ID
		}
	}
	s.logger.Info("participant abandoned, forfeiting",
		zap.String("participant", string(msg.Participant)),
		zap.String("winner", string(winner)))

	s.deadlineGen++
	s.pauseGen++
	s.state.Phase = game.PhaseFinished
	s.finish(game.ForfeitOutcome(s.state, winner, s.stats))
}

func (s *Session) handleRematchVote(pid game.ParticipantID) {
	if s.outcome == nil || !s.state.HasParticipant(pid) {
		return
	}
	if len(s.rematchVotes) == 0 {
		s.rematchGen++
		gen := s.rematchGen
		time.AfterFunc(s.cfg.RematchWindow, func() { s.post(rematchWindowClosed{gen: gen}) })
	}
	s.rematchVotes[pid] = true
	if len(s.rematchVotes) < 2 {
		return
	}

	// Accepted goes out before the successor exists: its match_found
	// must arrive after, on the same channels.
	s.broadcast(types.ServerMessage{Type: types.MsgRematchAccepted, SessionID: s.ID})
	newID, err := s.rematch(s.state.Players, s.state.Mode, s.clients)
	if err != nil {
		s.logger.Error("rematch creation failed", zap.Error(err))
		s.broadcast(types.ServerMessage{Type: types.MsgError, Error: "rematch failed"})
		clear(s.rematchVotes)
		return
	}
	s.logger.Info("rematch created", zap.String("new_session_id", newID))
	// Clients now belong to the successor session.
	s.clients = map[game.ParticipantID]chan types.ServerMessage{}
	s.remove()
}

func (s *Session) snapshot() *types.Snapshot {
	snap := &types.Snapshot{
		SessionID:   s.ID,
		Mode:        s.state.Mode,
		Players:     s.state.Players,
		RoundNumber: s.state.RoundNum,
		TotalRounds: s.state.TotalRounds,
		Scores:      copyScores(s.state.Scores),
		Streaks:     copyScores(s.state.Streaks),
		Jokers:      copyJokers(s.state.Jokers),
		Phase:       s.state.Phase,
	}
	if s.state.Phase == game.PhaseRoundActive && s.state.Round != nil {
		p := s.state.Round.Prompt
		snap.Prompt = &p
		snap.Eliminated = s.state.Round.Eliminated
		snap.RemainingMS = time.Until(s.state.Round.Deadline).Milliseconds()
	}
	return snap
}

func (s *Session) broadcast(msg types.ServerMessage) {
	for id := range s.clients {
		s.sendTo(id, msg)
	}
}

func (s *Session) sendTo(id game.ParticipantID, msg types.ServerMessage) {
	ch, ok := s.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow or wedged channel: drop the client, the grace timer
		// takes it from here.
		delete(s.clients, id)
		s.handleLostClient(id)
	}
}

func (s *Session) handleLostClient(pid game.ParticipantID) {
	if s.outcome != nil || s.state.Phase == game.PhaseFinished {
		return
	}
	s.graceGen[pid]++
	s.graceArmed[pid] = true
	gen := s.graceGen[pid]
	time.AfterFunc(s.cfg.DisconnectWait, func() { s.post(graceExpired{gen: gen, Participant: pid}) })
}

// post delivers an internal message unless the session is gone.
func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) remove() {
	if s.onRemove != nil {
		s.onRemove(s.ID)
	}
	s.shutdown()
}

// shutdown detaches every client but never closes their channels: the
// websocket handler owns those and may still be writing errors to them.
func (s *Session) shutdown() {
	clear(s.clients)
	s.cancel()
}

func rejectionFor(cmd game.Command, err error) types.ServerMessage {
	msgType := types.MsgError
	switch cmd.Type {
	case game.CmdSubmitAnswer:
		msgType = types.MsgAnswerRejected
	case game.CmdUseJoker:
		msgType = types.MsgJokerRejected
	}
	return types.ServerMessage{Type: msgType, Joker: cmd.Joker, Reason: err.Error()}
}

func copyScores(in map[game.ParticipantID]int) map[game.ParticipantID]int {
	out := make(map[game.ParticipantID]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyJokers(in map[game.ParticipantID]map[game.JokerType]int) map[game.ParticipantID]map[game.JokerType]int {
	out := make(map[game.ParticipantID]map[game.JokerType]int, len(in))
	for k, inv := range in {
		c := make(map[game.JokerType]int, len(inv))
		for j, n := range inv {
			c[j] = n
		}
		out[k] = c
	}
	return out
}
