// Package rpsv1 defines the JSON messages of the rps.v1.RoundService API.
package rpsv1

import "time"

type PlayRoundRequest struct {
	SessionID    string `json:"session_id"`
	PlayerChoice string `json:"player_choice"`
}

type PlayRoundResponse struct {
	PlayerChoice   string        `json:"player_choice"`
	ComputerChoice string        `json:"computer_choice"`
	Result         string        `json:"result"`
	SessionStats   *SessionStats `json:"session_stats"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type SessionStats struct {
	SessionID  string     `json:"session_id"`
	Wins       int64      `json:"wins"`
	Losses     int64      `json:"losses"`
	Ties       int64      `json:"ties"`
	TotalGames int64      `json:"total_games"`
	LastPlayed *time.Time `json:"last_played"`
}

type GameRound struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	PlayerChoice   string    `json:"player_choice"`
	ComputerChoice string    `json:"computer_choice"`
	Result         string    `json:"result"`
	PlayedAt       time.Time `json:"played_at"`
}

type GameHistoryResponse struct {
	Rounds []GameRound `json:"rounds"`
}

type HealthcheckRequest struct{}

type HealthcheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Error is the body of a non-200 Connect unary response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
