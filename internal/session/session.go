// Package session owns the live sessions. Each Session is an actor: a
// single goroutine drains a typed inbox, so every state transition on one
// session is serialized. Timers and AI moves never touch state directly;
// they post messages back into the inbox and are re-validated there, which
// makes stale deferred callbacks harmless.
package session

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uno/internal/ai"
	"uno/internal/game"
	"uno/internal/types"
)

// Timing bundles the scheduling knobs a session needs.
type Timing struct {
	TurnTimeout   time.Duration
	AIThinkDelay  time.Duration
	FinishedGrace time.Duration
}

type msg interface{ isMsg() }

type subscribeMsg struct {
	clientID string
	playerID uuid.UUID
	outbox   chan types.ServerMessage
}

type unsubscribeMsg struct{ clientID string }

type doMsg struct {
	cmd   game.Command
	reply chan error
}

type shutdownMsg struct {
	reason      string
	autoDeleted bool
}

type stateMsg struct{ reply chan game.State }

type timeoutMsg struct{ expected uuid.UUID }

type aiTurnMsg struct{ playerID uuid.UUID }

func (subscribeMsg) isMsg()   {}
func (unsubscribeMsg) isMsg() {}
func (doMsg) isMsg()          {}
func (shutdownMsg) isMsg()    {}
func (stateMsg) isMsg()       {}
func (timeoutMsg) isMsg()     {}
func (aiTurnMsg) isMsg()      {}

type subscriber struct {
	playerID uuid.UUID
	outbox   chan types.ServerMessage
}

type Session struct {
	id        uuid.UUID
	creatorID uuid.UUID

	inbox  chan msg
	state  game.State
	subs   map[string]subscriber
	timer  *time.Timer
	timing Timing
	store  Store
	log    *zap.Logger

	// onFinished is called (from the session goroutine) when the game
	// reaches the finished phase, so the directory can schedule teardown.
	onFinished func(uuid.UUID)

	lastActive atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New spins up the session actor around an existing state. Restored active
// sessions get their timer re-armed immediately.
func New(parent context.Context, st game.State, timing Timing, store Store, log *zap.Logger, onFinished func(uuid.UUID)) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:         st.ID,
		creatorID:  st.CreatorID,
		inbox:      make(chan msg, 64),
		state:      st,
		subs:       make(map[string]subscriber),
		timing:     timing,
		store:      store,
		log:        log.With(zap.String("session", st.ID.String())),
		onFinished: onFinished,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.touch()
	go s.loop()
	return s
}

func (s *Session) ID() uuid.UUID        { return s.id }
func (s *Session) CreatorID() uuid.UUID { return s.creatorID }

// LastActive is safe to read from any goroutine; the inactivity sweep uses it.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Do submits one command and waits for the initiator's verdict. Errors are
// reported only to the caller, never broadcast.
func (s *Session) Do(ctx context.Context, cmd game.Command) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, doMsg{cmd: cmd, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers an outbox for notifications. The current snapshot,
// personalized for playerID, is delivered first.
func (s *Session) Subscribe(ctx context.Context, clientID string, playerID uuid.UUID, outbox chan types.ServerMessage) error {
	return s.post(ctx, subscribeMsg{clientID: clientID, playerID: playerID, outbox: outbox})
}

func (s *Session) Unsubscribe(clientID string) {
	_ = s.post(context.Background(), unsubscribeMsg{clientID: clientID})
}

// Shutdown tears the session down: subscribers get a final deletion notice
// and their channels are closed. Safe to call more than once.
func (s *Session) Shutdown(reason string, autoDeleted bool) {
	_ = s.post(context.Background(), shutdownMsg{reason: reason, autoDeleted: autoDeleted})
}

// State returns a copy of the current state, read inside the actor loop.
func (s *Session) State(ctx context.Context) (game.State, error) {
	reply := make(chan game.State, 1)
	if err := s.post(ctx, stateMsg{reply: reply}); err != nil {
		return game.State{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.ctx.Done():
		return game.State{}, ErrSessionNotFound
	case <-ctx.Done():
		return game.State{}, ctx.Err()
	}
}

func (s *Session) post(ctx context.Context, m msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.ctx.Done():
		return ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postAsync is for timer/AI callbacks: drop silently if the session is gone.
func (s *Session) postAsync(m msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	if s.state.Phase == game.PhaseActive {
		s.armNext()
	}
	for {
		select {
		case <-s.ctx.Done():
			s.teardown("session closed", false)
			return
		case m := <-s.inbox:
			switch m := m.(type) {
			case subscribeMsg:
				s.subs[m.clientID] = subscriber{playerID: m.playerID, outbox: m.outbox}
				view := types.NewGameView(s.state, m.playerID)
				m.outbox <- types.ServerMessage{Type: types.MsgStateSnapshot, State: &view}

			case unsubscribeMsg:
				// Closing here releases the client's writer goroutine.
				if sub, ok := s.subs[m.clientID]; ok {
					close(sub.outbox)
					delete(s.subs, m.clientID)
				}

			case doMsg:
				err := s.apply(m.cmd)
				if m.reply != nil {
					m.reply <- err
				}

			case timeoutMsg:
				if err := s.apply(game.Command{Type: game.CmdTurnTimeout, PlayerID: m.expected}); err != nil {
					s.log.Warn("turn timeout failed", zap.Error(err))
				}

			case aiTurnMsg:
				s.aiTurn(m.playerID)

			case stateMsg:
				m.reply <- s.state.Clone()

			case shutdownMsg:
				s.teardown(m.reason, m.autoDeleted)
				return
			}
		}
	}
}

// apply runs one transition: validate, mutate, persist, rearm the timer,
// then fan out notifications. A transition that produced no events changed
// nothing (idempotent rejoin, stale timer) and is skipped entirely.
func (s *Session) apply(cmd game.Command) error {
	events, ns, err := game.Apply(s.state, cmd)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	s.state = ns
	s.touch()
	s.persist()
	s.armNext()
	s.broadcast(events)
	if s.state.Phase == game.PhaseFinished && s.onFinished != nil {
		s.onFinished(s.id)
	}
	return nil
}

// aiTurn re-verifies the precondition it was scheduled under: the session is
// still active and the same AI seat still holds the turn.
func (s *Session) aiTurn(playerID uuid.UUID) {
	if s.state.Phase != game.PhaseActive {
		return
	}
	cur, ok := s.state.CurrentPlayer()
	if !ok || cur.ID != playerID || !cur.IsAI {
		return
	}
	top, ok := s.state.TopCard()
	if !ok {
		return
	}
	if c, ok := ai.ChooseMove(s.state.Hands[cur.ID], top); ok {
		if err := s.apply(game.Command{Type: game.CmdPlayCard, PlayerID: cur.ID, Card: c}); err != nil {
			s.log.Error("ai play failed", zap.String("player", cur.Username), zap.Error(err))
		}
		return
	}
	if err := s.apply(game.Command{Type: game.CmdDrawCard, PlayerID: cur.ID}); err != nil {
		s.log.Error("ai draw failed", zap.String("player", cur.Username), zap.Error(err))
	}
}

// armNext cancels the outstanding timer and arms the right deferred action
// for the new current player. AI seats get a thinking delay instead of a
// timeout; the timeout is never armed for them.
func (s *Session) armNext() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state.Phase != game.PhaseActive {
		return
	}
	cur, ok := s.state.CurrentPlayer()
	if !ok {
		return
	}
	id := cur.ID
	if cur.IsAI {
		time.AfterFunc(s.timing.AIThinkDelay, func() { s.postAsync(aiTurnMsg{playerID: id}) })
		return
	}
	s.timer = time.AfterFunc(s.timing.TurnTimeout, func() { s.postAsync(timeoutMsg{expected: id}) })
}

// persist is best-effort: a failed save is logged and the in-memory state
// stays authoritative.
func (s *Session) persist() {
	data, err := json.Marshal(s.state)
	if err != nil {
		s.log.Error("marshal session state", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, Snapshot{ID: s.id, Phase: string(s.state.Phase), State: data}); err != nil {
		s.log.Warn("save session state", zap.Error(err))
	}
}

func (s *Session) broadcast(events []game.Event) {
	for _, ev := range events {
		m := types.FromEvent(ev)
		for id, sub := range s.subs {
			if ev.To != nil && sub.playerID != *ev.To {
				continue
			}
			select {
			case sub.outbox <- m:
			default:
				// Slow or dead client: drop it.
				close(sub.outbox)
				delete(s.subs, id)
			}
		}
	}
}

func (s *Session) teardown(reason string, autoDeleted bool) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	final := types.ServerMessage{Type: types.MsgSessionDeleted, Reason: reason, AutoDeleted: autoDeleted}
	for id, sub := range s.subs {
		select {
		case sub.outbox <- final:
		default:
		}
		close(sub.outbox)
		delete(s.subs, id)
	}
	s.cancel()
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}
