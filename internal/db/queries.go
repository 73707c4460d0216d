package db

import (
	"context"
)

const insertGameRound = `
INSERT INTO game_rounds (session_id, player_choice, computer_choice, result, played_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type InsertGameRoundParams struct {
	SessionID      string
	PlayerChoice   string
	ComputerChoice string
	Result         string
	PlayedAt       int64
}

func (q *Queries) InsertGameRound(ctx context.Context, arg InsertGameRoundParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertGameRound,
		arg.SessionID,
		arg.PlayerChoice,
		arg.ComputerChoice,
		arg.Result,
		arg.PlayedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertSessionStats = `
INSERT INTO session_stats (session_id, wins, losses, ties, total_games, last_played)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT (session_id) DO UPDATE SET
    wins        = session_stats.wins + excluded.wins,
    losses      = session_stats.losses + excluded.losses,
    ties        = session_stats.ties + excluded.ties,
    total_games = session_stats.total_games + 1,
    last_played = excluded.last_played
RETURNING session_id, wins, losses, ties, total_games, last_played
`

// UpsertSessionStatsParams carries a single round's increment: exactly one
// of Wins, Losses, Ties is 1.
type UpsertSessionStatsParams struct {
	SessionID  string
	Wins       int64
	Losses     int64
	Ties       int64
	LastPlayed int64
}

func (q *Queries) UpsertSessionStats(ctx context.Context, arg UpsertSessionStatsParams) (SessionStat, error) {
	row := q.db.QueryRowContext(ctx, upsertSessionStats,
		arg.SessionID,
		arg.Wins,
		arg.Losses,
		arg.Ties,
		arg.LastPlayed,
	)
	var i SessionStat
	err := row.Scan(
		&i.SessionID,
		&i.Wins,
		&i.Losses,
		&i.Ties,
		&i.TotalGames,
		&i.LastPlayed,
	)
	return i, err
}

const getSessionStats = `
SELECT session_id, wins, losses, ties, total_games, last_played
FROM session_stats
WHERE session_id = ?
`

func (q *Queries) GetSessionStats(ctx context.Context, sessionID string) (SessionStat, error) {
	row := q.db.QueryRowContext(ctx, getSessionStats, sessionID)
	var i SessionStat
	err := row.Scan(
		&i.SessionID,
		&i.Wins,
		&i.Losses,
		&i.Ties,
		&i.TotalGames,
		&i.LastPlayed,
	)
	return i, err
}

const listGameRoundsBySession = `
SELECT id, session_id, player_choice, computer_choice, result, played_at
FROM game_rounds
WHERE session_id = ?
ORDER BY played_at DESC, id DESC
`

func (q *Queries) ListGameRoundsBySession(ctx context.Context, sessionID string) ([]GameRound, error) {
	rows, err := q.db.QueryContext(ctx, listGameRoundsBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GameRound
	for rows.Next() {
		var i GameRound
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.PlayerChoice,
			&i.ComputerChoice,
			&i.Result,
			&i.PlayedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countGameRoundsBySession = `
SELECT COUNT(*) FROM game_rounds WHERE session_id = ?
`

func (q *Queries) CountGameRoundsBySession(ctx context.Context, sessionID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countGameRoundsBySession, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteGameRoundsBySession = `
DELETE FROM game_rounds WHERE session_id = ?
`

func (q *Queries) DeleteGameRoundsBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGameRoundsBySession, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSessionStats = `
DELETE FROM session_stats WHERE session_id = ?
`

func (q *Queries) DeleteSessionStats(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionStats, sessionID)
	return err
}
