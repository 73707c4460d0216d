package ledger

import (
	"context"

	"rps-tracker/internal/domain"
)

// Store is the persistence the ledger needs. RecordRound and DeleteSession
// must each be atomic: a reader never sees the round log and the aggregate
// disagree.
type Store interface {
	// RecordRound inserts round (ignoring round.ID, which the store assigns)
	// and applies its increment to the session aggregate, creating it if
	// needed. It returns the aggregate after the update.
	RecordRound(ctx context.Context, round domain.Round) (domain.SessionStats, error)
	// GetStats reports found=false when the session has no aggregate.
	GetStats(ctx context.Context, sessionID string) (stats domain.SessionStats, found bool, err error)
	// ListRounds returns rounds newest first (played_at desc, id desc).
	ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}
