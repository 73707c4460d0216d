package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"rps-tracker/internal/config"
	"rps-tracker/internal/database"
	"rps-tracker/internal/db"
	"rps-tracker/internal/domain"
	"rps-tracker/internal/ledger"
	"rps-tracker/internal/repository"
)

func newValkeyStore(t *testing.T, mr *miniredis.Miniredis) *repository.ValkeyStore {
	t.Helper()
	client, err := repository.NewValkeyClient(config.ValkeyConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return repository.NewValkeyStore(client, "rps", zerolog.Nop())
}

func newSQLiteLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	sqlDB, err := database.New(filepath.Join(t.TempDir(), "rps.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return ledger.New(repository.NewSQLiteStore(sqlDB, db.New(sqlDB), zerolog.Nop()), zerolog.Nop())
}

// slowStore does an unguarded read-modify-write, so it only stays
// consistent if the caller serializes writes per session.
type slowStore struct {
	mu     sync.Mutex
	stats  map[string]domain.SessionStats
	rounds map[string][]domain.Round
	nextID int64
}

func newSlowStore() *slowStore {
	return &slowStore{stats: map[string]domain.SessionStats{}, rounds: map[string][]domain.Round{}}
}

func (s *slowStore) RecordRound(_ context.Context, r domain.Round) (domain.SessionStats, error) {
	s.mu.Lock()
	current := s.stats[r.SessionID]
	s.mu.Unlock()

	time.Sleep(100 * time.Microsecond)

	current.SessionID = r.SessionID
	switch r.Result {
	case domain.Win:
		current.Wins++
	case domain.Loss:
		current.Losses++
	case domain.Tie:
		current.Ties++
	}
	current.TotalGames++
	at := r.PlayedAt
	current.LastPlayed = &at

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.rounds[r.SessionID] = append([]domain.Round{r}, s.rounds[r.SessionID]...)
	s.stats[r.SessionID] = current
	return current, nil
}

func (s *slowStore) GetStats(_ context.Context, id string) (domain.SessionStats, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[id]
	return st, ok, nil
}

func (s *slowStore) ListRounds(_ context.Context, id string) ([]domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Round(nil), s.rounds[id]...), nil
}

func (s *slowStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, id)
	delete(s.rounds, id)
	return nil
}

func (s *slowStore) Ping(context.Context) error { return nil }

type mockStore struct {
	mock.Mock
}

func (m *mockStore) RecordRound(ctx context.Context, r domain.Round) (domain.SessionStats, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(domain.SessionStats), args.Error(1)
}

func (m *mockStore) GetStats(ctx context.Context, id string) (domain.SessionStats, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.SessionStats), args.Bool(1), args.Error(2)
}

func (m *mockStore) ListRounds(ctx context.Context, id string) ([]domain.Round, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Round), args.Error(1)
}

func (m *mockStore) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestLedger_FreshSessionReadsAsZero(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()

	stats, err := l.GetAggregate(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.ZeroStats("fresh"), stats)

	history, err := l.GetHistory(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestLedger_RecordAndReset(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()

	stats, err := l.RecordRound(ctx, "s1", domain.Paper, domain.Rock, domain.Win)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalGames)
	require.NotNil(t, stats.LastPlayed)

	stats, err = l.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, stats.IsZero())

	stats, err = l.GetAggregate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.ZeroStats("s1"), stats)

	history, err := l.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Fresh again: next round starts from zero
	stats, err = l.RecordRound(ctx, "s1", domain.Rock, domain.Rock, domain.Tie)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Ties)
	assert.Equal(t, int64(1), stats.TotalGames)
}

func TestLedger_ConcurrentRoundsSameSession(t *testing.T) {
	const n = 40
	cases := map[string]*ledger.Ledger{
		"sqlite": newSQLiteLedger(t),
		"valkey": ledger.New(newValkeyStore(t, miniredis.RunT(t)), zerolog.Nop()),
		"slow":   ledger.New(newSlowStore(), zerolog.Nop()),
	}
	results := []domain.Result{domain.Win, domain.Loss, domain.Tie}

	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g, gctx := errgroup.WithContext(ctx)
			for i := range n {
				g.Go(func() error {
					_, err := l.RecordRound(gctx, "s1", domain.Rock, domain.Rock, results[i%3])
					return err
				})
			}
			require.NoError(t, g.Wait())

			stats, err := l.GetAggregate(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, int64(n), stats.TotalGames)
			assert.Equal(t, stats.TotalGames, stats.Wins+stats.Losses+stats.Ties)

			history, err := l.GetHistory(ctx, "s1")
			require.NoError(t, err)
			assert.Len(t, history, n)
			for i := 1; i < len(history); i++ {
				assert.False(t, history[i].PlayedAt.After(history[i-1].PlayedAt), "history not newest first at %d", i)
			}
			assert.True(t, history[0].PlayedAt.Equal(*stats.LastPlayed))
		})
	}
}

// Two ledgers with their own locks and clocks over one valkey, as two
// server processes would run. Only the store's atomicity keeps them in step.
func TestLedger_SharedValkeyAcrossLedgers(t *testing.T) {
	const perLedger = 30
	mr := miniredis.RunT(t)
	ledgers := []*ledger.Ledger{
		ledger.New(newValkeyStore(t, mr), zerolog.Nop()),
		ledger.New(newValkeyStore(t, mr), zerolog.Nop()),
	}
	results := []domain.Result{domain.Win, domain.Loss, domain.Tie}

	ctx := context.Background()
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range ledgers {
		for i := range perLedger {
			g.Go(func() error {
				_, err := l.RecordRound(gctx, "s1", domain.Paper, domain.Rock, results[i%3])
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	total := int64(perLedger * len(ledgers))
	for _, l := range ledgers {
		stats, err := l.GetAggregate(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, total, stats.TotalGames)
		assert.Equal(t, stats.TotalGames, stats.Wins+stats.Losses+stats.Ties)

		history, err := l.GetHistory(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, history, int(total))

		ids := make(map[int64]struct{}, len(history))
		for _, r := range history {
			ids[r.ID] = struct{}{}
		}
		assert.Len(t, ids, int(total), "round ids must be unique")
	}

	_, err := ledgers[0].Reset(ctx, "s1")
	require.NoError(t, err)
	stats, err := ledgers[1].GetAggregate(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, stats.IsZero())
}

func TestLedger_SessionsIndependent(t *testing.T) {
	l := newSQLiteLedger(t)
	ctx := context.Background()

	_, err := l.RecordRound(ctx, "a", domain.Paper, domain.Rock, domain.Win)
	require.NoError(t, err)
	_, err = l.RecordRound(ctx, "b", domain.Rock, domain.Paper, domain.Loss)
	require.NoError(t, err)

	before, err := l.GetAggregate(ctx, "b")
	require.NoError(t, err)

	_, err = l.RecordRound(ctx, "a", domain.Rock, domain.Rock, domain.Tie)
	require.NoError(t, err)
	_, err = l.Reset(ctx, "a")
	require.NoError(t, err)

	after, err := l.GetAggregate(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	history, err := l.GetHistory(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedger_StorageErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	store := new(mockStore)
	store.On("RecordRound", mock.Anything, mock.Anything).Return(domain.SessionStats{}, boom)
	store.On("GetStats", mock.Anything, "s1").Return(domain.SessionStats{}, false, boom)
	store.On("ListRounds", mock.Anything, "s1").Return(nil, boom)
	store.On("DeleteSession", mock.Anything, "s1").Return(boom)
	store.On("Ping", mock.Anything).Return(boom)

	l := ledger.New(store, zerolog.Nop())
	ctx := context.Background()

	_, err := l.RecordRound(ctx, "s1", domain.Rock, domain.Paper, domain.Loss)
	assert.ErrorIs(t, err, ledger.ErrStorage)
	assert.ErrorIs(t, err, boom)

	_, err = l.GetAggregate(ctx, "s1")
	assert.ErrorIs(t, err, ledger.ErrStorage)

	_, err = l.GetHistory(ctx, "s1")
	assert.ErrorIs(t, err, ledger.ErrStorage)

	_, err = l.Reset(ctx, "s1")
	assert.ErrorIs(t, err, ledger.ErrStorage)

	assert.ErrorIs(t, l.Ping(ctx), ledger.ErrStorage)
	store.AssertExpectations(t)
}

func TestLedger_RoundCarriesClockTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	store := new(mockStore)
	store.On("RecordRound", mock.Anything, mock.MatchedBy(func(r domain.Round) bool {
		return r.SessionID == "s1" && r.PlayedAt.Equal(fixed) && r.Result == domain.Win
	})).Return(domain.SessionStats{SessionID: "s1", Wins: 1, TotalGames: 1, LastPlayed: &fixed}, nil).Once()

	l := ledger.NewWithClock(store, ledger.NewClock(func() time.Time { return fixed }), zerolog.Nop())

	stats, err := l.RecordRound(context.Background(), "s1", domain.Scissors, domain.Paper, domain.Win)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Wins)
	store.AssertExpectations(t)
}

func TestLedger_LockWaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	store := new(mockStore)
	store.On("RecordRound", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-block }).
		Return(domain.SessionStats{}, nil)

	l := ledger.New(store, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = l.RecordRound(context.Background(), "s1", domain.Rock, domain.Rock, domain.Tie)
	}()

	// give the first writer time to take the lock
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Reset(ctx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	<-done
}

func TestLedger_LockWaitIsBounded(t *testing.T) {
	block := make(chan struct{})
	store := new(mockStore)
	store.On("RecordRound", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-block }).
		Return(domain.SessionStats{}, nil)
	store.On("DeleteSession", mock.Anything, "s1").Return(nil)

	l := ledger.New(store, zerolog.Nop()).WithLockWait(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = l.RecordRound(context.Background(), "s1", domain.Rock, domain.Rock, domain.Tie)
	}()
	time.Sleep(20 * time.Millisecond)

	// no caller deadline: only the lock wait bound can end this
	_, err := l.RecordRound(context.Background(), "s1", domain.Paper, domain.Rock, domain.Win)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ledger.ErrStorage)

	close(block)
	<-done

	// once the holder is gone the bound no longer gets in the way
	_, err = l.Reset(context.Background(), "s1")
	assert.NoError(t, err)
	store.AssertNumberOfCalls(t, "RecordRound", 1)
}
