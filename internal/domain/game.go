package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidChoice  = errors.New("invalid choice")
	ErrEmptySessionID = errors.New("session_id is required")
	ErrSessionIDLong  = errors.New("session_id is too long")
)

const MaxSessionIDLength = 128

type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// Choices lists every valid choice in a fixed order.
var Choices = [...]Choice{Rock, Paper, Scissors}

func (c Choice) Valid() bool {
	switch c {
	case Rock, Paper, Scissors:
		return true
	}
	return false
}

// ParseChoice accepts only the exact lower-case names.
func ParseChoice(s string) (Choice, error) {
	c := Choice(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return c, nil
}

// Result is always from the player's point of view.
type Result string

const (
	Win  Result = "win"
	Loss Result = "loss"
	Tie  Result = "tie"
)

func (r Result) Valid() bool {
	switch r {
	case Win, Loss, Tie:
		return true
	}
	return false
}

// ValidateSessionID checks id without rewriting it: session ids are opaque,
// so " a " and "a" are different sessions.
func ValidateSessionID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrEmptySessionID
	}
	if len(id) > MaxSessionIDLength {
		return "", fmt.Errorf("%w: %d > %d", ErrSessionIDLong, len(id), MaxSessionIDLength)
	}
	return id, nil
}

type Round struct {
	ID             int64
	SessionID      string
	PlayerChoice   Choice
	ComputerChoice Choice
	Result         Result
	PlayedAt       time.Time
}

// SessionStats is the running aggregate for one session.
// Wins+Losses+Ties always equals TotalGames.
type SessionStats struct {
	SessionID  string
	Wins       int64
	Losses     int64
	Ties       int64
	TotalGames int64
	LastPlayed *time.Time
}

// ZeroStats is what a session that never played (or was reset) reads as.
func ZeroStats(sessionID string) SessionStats {
	return SessionStats{SessionID: sessionID}
}

func (s SessionStats) IsZero() bool {
	return s.TotalGames == 0 && s.Wins == 0 && s.Losses == 0 && s.Ties == 0 && s.LastPlayed == nil
}

type PlayOutcome struct {
	PlayerChoice   Choice
	ComputerChoice Choice
	Result         Result
	SessionStats   SessionStats
}
