package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rps-tracker/internal/db"
	"rps-tracker/internal/domain"
)

// SQLiteStore keeps rounds in game_rounds and aggregates in session_stats.
type SQLiteStore struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewSQLiteStore(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *SQLiteStore) RecordRound(ctx context.Context, round domain.Round) (domain.SessionStats, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	playedAt := round.PlayedAt.UnixNano()

	id, err := qtx.InsertGameRound(ctx, db.InsertGameRoundParams{
		SessionID:      round.SessionID,
		PlayerChoice:   string(round.PlayerChoice),
		ComputerChoice: string(round.ComputerChoice),
		Result:         string(round.Result),
		PlayedAt:       playedAt,
	})
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("failed to insert round: %w", err)
	}

	params := db.UpsertSessionStatsParams{SessionID: round.SessionID, LastPlayed: playedAt}
	switch round.Result {
	case domain.Win:
		params.Wins = 1
	case domain.Loss:
		params.Losses = 1
	case domain.Tie:
		params.Ties = 1
	default:
		return domain.SessionStats{}, fmt.Errorf("unknown result %q", round.Result)
	}

	row, err := qtx.UpsertSessionStats(ctx, params)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("failed to upsert session stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.SessionStats{}, fmt.Errorf("failed to commit round: %w", err)
	}

	r.logger.Debug().Int64("round_id", id).Str("session_id", round.SessionID).Msg("round stored")
	return toDomainStats(row), nil
}

func (r *SQLiteStore) GetStats(ctx context.Context, sessionID string) (domain.SessionStats, bool, error) {
	row, err := r.queries.GetSessionStats(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionStats{}, false, nil
	}
	if err != nil {
		return domain.SessionStats{}, false, err
	}
	return toDomainStats(row), true, nil
}

func (r *SQLiteStore) ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error) {
	rows, err := r.queries.ListGameRoundsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Round, len(rows))
	for i, row := range rows {
		result[i] = domain.Round{
			ID:             row.ID,
			SessionID:      row.SessionID,
			PlayerChoice:   domain.Choice(row.PlayerChoice),
			ComputerChoice: domain.Choice(row.ComputerChoice),
			Result:         domain.Result(row.Result),
			PlayedAt:       fromUnixNano(row.PlayedAt),
		}
	}
	return result, nil
}

func (r *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	deleted, err := qtx.DeleteGameRoundsBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete rounds: %w", err)
	}
	if err := qtx.DeleteSessionStats(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	r.logger.Debug().Str("session_id", sessionID).Int64("rounds_deleted", deleted).Msg("session deleted")
	return nil
}

// CountRounds is used to cross-check the aggregate against the log.
func (r *SQLiteStore) CountRounds(ctx context.Context, sessionID string) (int64, error) {
	return r.queries.CountGameRoundsBySession(ctx, sessionID)
}

func (r *SQLiteStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toDomainStats(row db.SessionStat) domain.SessionStats {
	stats := domain.SessionStats{
		SessionID:  row.SessionID,
		Wins:       row.Wins,
		Losses:     row.Losses,
		Ties:       row.Ties,
		TotalGames: row.TotalGames,
	}
	if row.LastPlayed.Valid {
		t := fromUnixNano(row.LastPlayed.Int64)
		stats.LastPlayed = &t
	}
	return stats
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
