package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uno/internal/game"
	"uno/internal/types"
)

// fakeStore records every call so tests can assert on persistence without a
// database. saveErr makes Save fail to prove persistence is best-effort.
type fakeStore struct {
	mu      sync.Mutex
	saves   []Snapshot
	deletes []uuid.UUID
	snaps   []Snapshot
	saveErr error
}

func (f *fakeStore) Save(_ context.Context, snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, snap)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeStore) List(context.Context) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps, nil
}

func (f *fakeStore) savedPhases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	phases := make([]string, len(f.saves))
	for i, s := range f.saves {
		phases[i] = s.Phase
	}
	return phases
}

func (f *fakeStore) deleted() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.deletes...)
}

func testConfig() Config {
	return Config{
		Timing: Timing{
			TurnTimeout:   time.Minute,
			AIThinkDelay:  10 * time.Millisecond,
			FinishedGrace: time.Minute,
		},
	}
}

// recvType drains the outbox until a message of the wanted type arrives.
func recvType(t *testing.T, ch chan types.ServerMessage, want string) types.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m, ok := <-ch:
			require.True(t, ok, "outbox closed while waiting for %s", want)
			if m.Type == want {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	bob := game.Player{ID: uuid.New(), Username: "bob"}

	sess, err := d.Create(ctx, "friday night", alice, 4)
	require.NoError(t, err)

	got, err := d.Get(ctx, sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)

	_, err = d.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdJoin, PlayerID: bob.ID, Username: "bob"}))

	outbox := make(chan types.ServerMessage, 32)
	require.NoError(t, sess.Subscribe(ctx, "client-1", alice.ID, outbox))

	snap := recvType(t, outbox, types.MsgStateSnapshot)
	require.NotNil(t, snap.State)
	assert.Equal(t, "friday night", snap.State.Name)
	assert.Len(t, snap.State.Players, 2)

	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: alice.ID}))

	started := recvType(t, outbox, types.MsgGameStarted)
	assert.Equal(t, alice.ID.String(), started.CurrentPlayer)

	st, err := sess.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseActive, st.Phase)
	assert.Len(t, st.Hands[alice.ID], game.HandSize)
}

func TestSessionRejectsBadCommands(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	sess, err := d.Create(ctx, "solo", alice, 4)
	require.NoError(t, err)

	err = sess.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: alice.ID})
	assert.ErrorIs(t, err, game.ErrInsufficientPlayers)
}

func TestTurnTimeoutForcesDraw(t *testing.T) {
	cfg := testConfig()
	cfg.Timing.TurnTimeout = 50 * time.Millisecond
	d := NewDirectory(context.Background(), cfg, NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	bob := game.Player{ID: uuid.New(), Username: "bob"}
	sess, err := d.Create(ctx, "slowpokes", alice, 4)
	require.NoError(t, err)
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdJoin, PlayerID: bob.ID, Username: "bob"}))

	outbox := make(chan types.ServerMessage, 32)
	require.NoError(t, sess.Subscribe(ctx, "client-1", alice.ID, outbox))
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: alice.ID}))

	timedOut := recvType(t, outbox, types.MsgTurnTimedOut)
	assert.Equal(t, alice.ID.String(), timedOut.PlayerID)
	assert.Equal(t, game.HandSize+1, timedOut.CardsLeft)

	changed := recvType(t, outbox, types.MsgTurnChanged)
	assert.Equal(t, bob.ID.String(), changed.CurrentPlayer)
}

func TestAITakesItsTurn(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	botID := uuid.New()
	sess, err := d.Create(ctx, "vs bot", alice, 4)
	require.NoError(t, err)
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdJoin, PlayerID: botID, Username: "AI_Player_1", IsAI: true}))

	outbox := make(chan types.ServerMessage, 64)
	require.NoError(t, sess.Subscribe(ctx, "client-1", alice.ID, outbox))
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: alice.ID}))

	// Alice draws, handing the turn to the bot, which acts on its own after
	// the think delay.
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdDrawCard, PlayerID: alice.ID}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-outbox:
			if (m.Type == types.MsgCardPlayed || m.Type == types.MsgPlayerDrewCard) && m.Username == "AI_Player_1" {
				return
			}
			if m.Type == types.MsgGameFinished {
				return
			}
		case <-deadline:
			t.Fatal("bot never moved")
		}
	}
}

func TestListSummarizesLiveSessions(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	bob := game.Player{ID: uuid.New(), Username: "bob"}
	carol := game.Player{ID: uuid.New(), Username: "carol"}

	waiting, err := d.Create(ctx, "open table", alice, 4)
	require.NoError(t, err)

	running, err := d.Create(ctx, "in progress", bob, 2)
	require.NoError(t, err)
	require.NoError(t, running.Do(ctx, game.Command{Type: game.CmdJoin, PlayerID: carol.ID, Username: "carol"}))
	require.NoError(t, running.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: bob.ID}))

	summaries, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[uuid.UUID]Summary, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = s
	}

	open := byID[waiting.ID()]
	assert.Equal(t, "open table", open.Name)
	assert.Equal(t, game.PhaseWaiting, open.Phase)
	assert.Equal(t, 1, open.Players)
	assert.Equal(t, 4, open.MaxPlayers)

	busy := byID[running.ID()]
	assert.Equal(t, game.PhaseActive, busy.Phase)
	assert.Equal(t, 2, busy.Players)

	require.NoError(t, d.Remove(ctx, waiting.ID(), alice.ID))
	summaries, err = d.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, running.ID(), summaries[0].ID)
}

func TestUnsubscribeClosesOutbox(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	sess, err := d.Create(ctx, "short visit", alice, 4)
	require.NoError(t, err)

	outbox := make(chan types.ServerMessage, 32)
	require.NoError(t, sess.Subscribe(ctx, "client-1", alice.ID, outbox))
	recvType(t, outbox, types.MsgStateSnapshot)

	sess.Unsubscribe("client-1")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-outbox:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("outbox not closed after unsubscribe")
		}
	}
}

func TestDirectoryShutdownUnblocksCallers(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	sess, err := d.Create(ctx, "doomed", alice, 4)
	require.NoError(t, err)

	d.Shutdown()

	_, err = d.Create(ctx, "too late", alice, 4)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = d.Get(ctx, sess.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = d.Remove(ctx, sess.ID(), alice.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = d.List(ctx)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRemoveRequiresCreator(t *testing.T) {
	d := NewDirectory(context.Background(), testConfig(), NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	sess, err := d.Create(ctx, "mine", alice, 4)
	require.NoError(t, err)

	err = d.Remove(ctx, sess.ID(), uuid.New())
	assert.ErrorIs(t, err, ErrNotCreator)

	outbox := make(chan types.ServerMessage, 32)
	require.NoError(t, sess.Subscribe(ctx, "client-1", alice.ID, outbox))
	recvType(t, outbox, types.MsgStateSnapshot)

	require.NoError(t, d.Remove(ctx, sess.ID(), alice.ID))

	gone := recvType(t, outbox, types.MsgSessionDeleted)
	assert.False(t, gone.AutoDeleted)

	_, err = d.Get(ctx, sess.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = d.Remove(ctx, sess.ID(), alice.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The stale handle is dead too.
	err = sess.Do(ctx, game.Command{Type: game.CmdDrawCard, PlayerID: alice.ID})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestInactivitySweep(t *testing.T) {
	cfg := testConfig()
	cfg.Inactivity = 30 * time.Millisecond
	cfg.SweepInterval = 10 * time.Millisecond
	d := NewDirectory(context.Background(), cfg, NopStore{}, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	sess, err := d.Create(ctx, "idle", alice, 4)
	require.NoError(t, err)

	outbox := make(chan types.ServerMessage, 32)
	require.NoError(t, sess.Subscribe(ctx, "client-1", alice.ID, outbox))
	recvType(t, outbox, types.MsgStateSnapshot)

	gone := recvType(t, outbox, types.MsgSessionDeleted)
	assert.True(t, gone.AutoDeleted)
	assert.Equal(t, "deleted due to inactivity", gone.Reason)

	require.Eventually(t, func() bool {
		_, err := d.Get(ctx, sess.ID())
		return errors.Is(err, ErrSessionNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPersistenceRecordsTransitions(t *testing.T) {
	store := &fakeStore{}
	d := NewDirectory(context.Background(), testConfig(), store, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	bob := game.Player{ID: uuid.New(), Username: "bob"}
	sess, err := d.Create(ctx, "durable", alice, 4)
	require.NoError(t, err)
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdJoin, PlayerID: bob.ID, Username: "bob"}))
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: alice.ID}))

	phases := store.savedPhases()
	require.NotEmpty(t, phases)
	assert.Equal(t, "waiting", phases[0])
	assert.Equal(t, "active", phases[len(phases)-1])

	require.NoError(t, d.Remove(ctx, sess.ID(), alice.ID))
	require.Eventually(t, func() bool {
		for _, id := range store.deleted() {
			if id == sess.ID() {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailingStoreDoesNotBlockPlay(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("db down")}
	d := NewDirectory(context.Background(), testConfig(), store, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	alice := game.Player{ID: uuid.New(), Username: "alice"}
	bob := game.Player{ID: uuid.New(), Username: "bob"}
	sess, err := d.Create(ctx, "flaky", alice, 4)
	require.NoError(t, err)
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdJoin, PlayerID: bob.ID, Username: "bob"}))
	require.NoError(t, sess.Do(ctx, game.Command{Type: game.CmdStart, PlayerID: alice.ID}))

	st, err := sess.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseActive, st.Phase)
}

func TestRestoreAdoptsUnfinishedSessions(t *testing.T) {
	waiting := game.NewState(uuid.New(), "came back", game.Player{ID: uuid.New(), Username: "alice"}, 4)
	data, err := json.Marshal(waiting)
	require.NoError(t, err)

	finishedID := uuid.New()
	store := &fakeStore{snaps: []Snapshot{
		{ID: waiting.ID, Phase: string(game.PhaseWaiting), State: data},
		{ID: finishedID, Phase: string(game.PhaseFinished), State: []byte(`{}`)},
	}}

	d := NewDirectory(context.Background(), testConfig(), store, zap.NewNop())
	defer d.Shutdown()
	ctx := context.Background()

	require.NoError(t, d.Restore(ctx))

	sess, err := d.Get(ctx, waiting.ID)
	require.NoError(t, err)
	st, err := sess.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "came back", st.Name)
	assert.Equal(t, game.PhaseWaiting, st.Phase)

	assert.Contains(t, store.deleted(), finishedID)
}