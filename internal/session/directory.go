package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uno/internal/game"
)

var ErrSessionNotFound = errors.New("session not found")
var ErrNotCreator = errors.New("only the creator can delete the game")

// Config carries the directory-level knobs alongside the per-session Timing.
type Config struct {
	Timing Timing
	// Inactivity is how long a session may sit idle before the sweep tears
	// it down. Zero disables the sweep.
	Inactivity    time.Duration
	SweepInterval time.Duration
}

type dirMsg interface{ isDirMsg() }

type createMsg struct {
	name       string
	creator    game.Player
	maxPlayers int
	reply      chan *Session
}

type getMsg struct {
	id    uuid.UUID
	reply chan *Session
}

type listMsg struct{ reply chan []*Session }

type removeMsg struct {
	id        uuid.UUID
	requester uuid.UUID
	reply     chan error
}

type autoRemoveMsg struct {
	id     uuid.UUID
	reason string
}

type adoptMsg struct{ state game.State }

type sweepMsg struct{}

type shutdownAllMsg struct{}

func (createMsg) isDirMsg()      {}
func (getMsg) isDirMsg()         {}
func (listMsg) isDirMsg()        {}
func (removeMsg) isDirMsg()      {}
func (autoRemoveMsg) isDirMsg()  {}
func (adoptMsg) isDirMsg()       {}
func (sweepMsg) isDirMsg()       {}
func (shutdownAllMsg) isDirMsg() {}

// Directory owns the session map. Like the sessions themselves it is an
// actor: one goroutine, one inbox, no cross-session locking.
type Directory struct {
	inbox    chan dirMsg
	sessions map[uuid.UUID]*Session
	cfg      Config
	store    Store
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewDirectory(parent context.Context, cfg Config, store Store, log *zap.Logger) *Directory {
	ctx, cancel := context.WithCancel(parent)
	d := &Directory{
		inbox:    make(chan dirMsg, 64),
		sessions: make(map[uuid.UUID]*Session),
		cfg:      cfg,
		store:    store,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go d.loop()
	if cfg.Inactivity > 0 && cfg.SweepInterval > 0 {
		go d.sweepLoop()
	}
	return d
}

// Create makes a new session with the creator already seated.
func (d *Directory) Create(ctx context.Context, name string, creator game.Player, maxPlayers int) (*Session, error) {
	reply := make(chan *Session, 1)
	if err := d.post(ctx, createMsg{name: name, creator: creator, maxPlayers: maxPlayers, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case sess := <-reply:
		return sess, nil
	case <-d.ctx.Done():
		return nil, ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Directory) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	reply := make(chan *Session, 1)
	if err := d.post(ctx, getMsg{id: id, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case sess := <-reply:
		if sess == nil {
			return nil, ErrSessionNotFound
		}
		return sess, nil
	case <-d.ctx.Done():
		return nil, ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Summary is one lobby listing entry.
type Summary struct {
	ID         uuid.UUID
	Name       string
	Phase      game.Phase
	Players    int
	MaxPlayers int
}

// List summarizes every live session. The directory loop only hands back the
// session handles; their states are read afterwards so a busy session cannot
// stall the directory.
func (d *Directory) List(ctx context.Context) ([]Summary, error) {
	reply := make(chan []*Session, 1)
	if err := d.post(ctx, listMsg{reply: reply}); err != nil {
		return nil, err
	}
	var sessions []*Session
	select {
	case sessions = <-reply:
	case <-d.ctx.Done():
		return nil, ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	summaries := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		st, err := sess.State(ctx)
		if err != nil {
			// Torn down while we were listing.
			continue
		}
		summaries = append(summaries, Summary{
			ID:         st.ID,
			Name:       st.Name,
			Phase:      st.Phase,
			Players:    len(st.Players),
			MaxPlayers: st.MaxPlayers,
		})
	}
	return summaries, nil
}

// Remove is the explicit creator-initiated deletion.
func (d *Directory) Remove(ctx context.Context, id, requester uuid.UUID) error {
	reply := make(chan error, 1)
	if err := d.post(ctx, removeMsg{id: id, requester: requester, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-d.ctx.Done():
		return ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restore loads unfinished sessions from the store and adopts them. Active
// sessions come back with timers armed.
func (d *Directory) Restore(ctx context.Context) error {
	snaps, err := d.store.List(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if snap.Phase == string(game.PhaseFinished) {
			if err := d.store.Delete(ctx, snap.ID); err != nil {
				d.log.Warn("delete finished snapshot", zap.String("session", snap.ID.String()), zap.Error(err))
			}
			continue
		}
		var st game.State
		if err := json.Unmarshal(snap.State, &st); err != nil {
			d.log.Warn("skipping snapshot: bad state", zap.String("session", snap.ID.String()), zap.Error(err))
			continue
		}
		if err := d.post(ctx, adoptMsg{state: st}); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown tears down every session and stops the directory.
func (d *Directory) Shutdown() {
	_ = d.post(context.Background(), shutdownAllMsg{})
}

func (d *Directory) post(ctx context.Context, m dirMsg) error {
	select {
	case d.inbox <- m:
		return nil
	case <-d.ctx.Done():
		return ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Directory) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case m := <-d.inbox:
			switch m := m.(type) {
			case createMsg:
				id := uuid.New()
				st := game.NewState(id, m.name, m.creator, m.maxPlayers)
				sess := New(d.ctx, st, d.cfg.Timing, d.store, d.log, d.finished)
				d.sessions[id] = sess
				d.saveInitial(st)
				d.log.Info("session created",
					zap.String("session", id.String()),
					zap.String("creator", m.creator.Username))
				m.reply <- sess

			case getMsg:
				m.reply <- d.sessions[m.id] // may be nil

			case listMsg:
				sessions := make([]*Session, 0, len(d.sessions))
				for _, sess := range d.sessions {
					sessions = append(sessions, sess)
				}
				m.reply <- sessions

			case removeMsg:
				sess := d.sessions[m.id]
				if sess == nil {
					m.reply <- ErrSessionNotFound
					break
				}
				if sess.CreatorID() != m.requester {
					m.reply <- ErrNotCreator
					break
				}
				d.drop(sess, "deleted by creator", false)
				m.reply <- nil

			case autoRemoveMsg:
				if sess := d.sessions[m.id]; sess != nil {
					d.drop(sess, m.reason, true)
				}

			case adoptMsg:
				if _, exists := d.sessions[m.state.ID]; exists {
					break
				}
				sess := New(d.ctx, m.state, d.cfg.Timing, d.store, d.log, d.finished)
				d.sessions[m.state.ID] = sess
				d.log.Info("session restored",
					zap.String("session", m.state.ID.String()),
					zap.String("phase", string(m.state.Phase)))

			case sweepMsg:
				now := time.Now()
				for _, sess := range d.sessions {
					if now.Sub(sess.LastActive()) > d.cfg.Inactivity {
						d.drop(sess, "deleted due to inactivity", true)
					}
				}

			case shutdownAllMsg:
				for id, sess := range d.sessions {
					sess.Shutdown("server shutting down", true)
					delete(d.sessions, id)
				}
				d.cancel()
				return
			}
		}
	}
}

// drop removes the session from the map first, so an in-flight operation
// races into ErrSessionNotFound instead of resurrecting partial state.
func (d *Directory) drop(sess *Session, reason string, auto bool) {
	delete(d.sessions, sess.ID())
	sess.Shutdown(reason, auto)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := d.store.Delete(ctx, sess.ID()); err != nil {
		d.log.Warn("delete session snapshot", zap.String("session", sess.ID().String()), zap.Error(err))
	}
	d.log.Info("session removed",
		zap.String("session", sess.ID().String()),
		zap.String("reason", reason))
}

// finished runs on the session goroutine when a game ends: the session is
// kept around for a grace period so players can see the result.
func (d *Directory) finished(id uuid.UUID) {
	time.AfterFunc(d.cfg.Timing.FinishedGrace, func() {
		_ = d.post(context.Background(), autoRemoveMsg{id: id, reason: "game finished"})
	})
}

func (d *Directory) sweepLoop() {
	t := time.NewTicker(d.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-t.C:
			_ = d.post(context.Background(), sweepMsg{})
		}
	}
}

func (d *Directory) saveInitial(st game.State) {
	data, err := json.Marshal(st)
	if err != nil {
		d.log.Error("marshal initial state", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := d.store.Save(ctx, Snapshot{ID: st.ID, Phase: string(st.Phase), State: data}); err != nil {
		d.log.Warn("save initial session state", zap.String("session", st.ID.String()), zap.Error(err))
	}
}
