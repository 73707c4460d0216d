// Package ledger owns the per-session round log and running aggregate.
//
// Every write for a session goes through a keyed lock, and the timestamp of
// a round is taken while that lock is held. Stores apply each write
// atomically, so the log and aggregate stay in step even across processes;
// the lock additionally keeps last_played and history order aligned with
// insertion order within one process.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rps-tracker/internal/constants"
	"rps-tracker/internal/domain"
	"rps-tracker/internal/keylock"
)

// ErrStorage marks failures coming from the backing store.
var ErrStorage = errors.New("storage failure")

type Ledger struct {
	store    Store
	locks    *keylock.Locker
	clock    *Clock
	lockWait time.Duration
	logger   zerolog.Logger
}

func New(store Store, logger zerolog.Logger) *Ledger {
	return NewWithClock(store, NewClock(nil), logger)
}

func NewWithClock(store Store, clock *Clock, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		locks:    keylock.New(),
		clock:    clock,
		lockWait: constants.LockWaitTimeout,
		logger:   logger.With().Str("component", "ledger").Logger(),
	}
}

// WithLockWait caps how long a writer queues behind another writer of the
// same session. The caller's deadline still applies when it is shorter.
func (l *Ledger) WithLockWait(d time.Duration) *Ledger {
	l.lockWait = d
	return l
}

func (l *Ledger) lockSession(ctx context.Context, sessionID string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.lockWait)
	defer cancel()

	unlock, err := l.locks.Lock(waitCtx, sessionID)
	if err != nil {
		l.logger.Warn().Err(err).Str("session_id", sessionID).Msg("gave up waiting for session lock")
		return nil, fmt.Errorf("wait for session lock: %w", err)
	}
	return unlock, nil
}

func (l *Ledger) RecordRound(ctx context.Context, sessionID string, player, computer domain.Choice, result domain.Result) (domain.SessionStats, error) {
	unlock, err := l.lockSession(ctx, sessionID)
	if err != nil {
		return domain.SessionStats{}, err
	}
	defer unlock()

	round := domain.Round{
		SessionID:      sessionID,
		PlayerChoice:   player,
		ComputerChoice: computer,
		Result:         result,
		PlayedAt:       l.clock.Next(),
	}

	stats, err := l.store.RecordRound(ctx, round)
	if err != nil {
		l.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to record round")
		return domain.SessionStats{}, fmt.Errorf("%w: record round: %w", ErrStorage, err)
	}

	l.logger.Debug().
		Str("session_id", sessionID).
		Str("result", string(result)).
		Int64("total_games", stats.TotalGames).
		Msg("round recorded")

	return stats, nil
}

// GetAggregate never writes: a session without a stored aggregate reads as
// the zero value.
func (l *Ledger) GetAggregate(ctx context.Context, sessionID string) (domain.SessionStats, error) {
	stats, found, err := l.store.GetStats(ctx, sessionID)
	if err != nil {
		l.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session stats")
		return domain.SessionStats{}, fmt.Errorf("%w: get stats: %w", ErrStorage, err)
	}
	if !found {
		return domain.ZeroStats(sessionID), nil
	}
	return stats, nil
}

func (l *Ledger) GetHistory(ctx context.Context, sessionID string) ([]domain.Round, error) {
	rounds, err := l.store.ListRounds(ctx, sessionID)
	if err != nil {
		l.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to load game history")
		return nil, fmt.Errorf("%w: list rounds: %w", ErrStorage, err)
	}
	if rounds == nil {
		rounds = []domain.Round{}
	}
	return rounds, nil
}

// Reset erases the session's rounds and aggregate. Resetting a session that
// never played is not an error.
func (l *Ledger) Reset(ctx context.Context, sessionID string) (domain.SessionStats, error) {
	unlock, err := l.lockSession(ctx, sessionID)
	if err != nil {
		return domain.SessionStats{}, err
	}
	defer unlock()

	if err := l.store.DeleteSession(ctx, sessionID); err != nil {
		l.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to reset session")
		return domain.SessionStats{}, fmt.Errorf("%w: delete session: %w", ErrStorage, err)
	}

	l.logger.Info().Str("session_id", sessionID).Msg("session reset")
	return domain.ZeroStats(sessionID), nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStorage, err)
	}
	return nil
}
