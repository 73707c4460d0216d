package db

import "database/sql"

type GameRound struct {
	ID             int64
	SessionID      string
	PlayerChoice   string
	ComputerChoice string
	Result         string
	PlayedAt       int64
}

type SessionStat struct {
	SessionID  string
	Wins       int64
	Losses     int64
	Ties       int64
	TotalGames int64
	LastPlayed sql.NullInt64
}
