package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rps-tracker/internal/constants"
	"rps-tracker/internal/domain"
	"rps-tracker/internal/game"
	"rps-tracker/internal/metrics"
)

// SessionLedger is the subset of *ledger.Ledger the service drives.
type SessionLedger interface {
	RecordRound(ctx context.Context, sessionID string, player, computer domain.Choice, result domain.Result) (domain.SessionStats, error)
	GetAggregate(ctx context.Context, sessionID string) (domain.SessionStats, error)
	GetHistory(ctx context.Context, sessionID string) ([]domain.Round, error)
	Reset(ctx context.Context, sessionID string) (domain.SessionStats, error)
	Ping(ctx context.Context) error
}

type RoundService struct {
	chooser game.Chooser
	ledger  SessionLedger
	logger  zerolog.Logger
}

func NewRoundService(chooser game.Chooser, ledger SessionLedger, logger zerolog.Logger) *RoundService {
	return &RoundService{chooser: chooser, ledger: ledger, logger: logger}
}

// PlayRound is the only way a round gets recorded: the computer's move is
// drawn here and the result is always resolved, never supplied.
func (s *RoundService) PlayRound(ctx context.Context, sessionID string, player domain.Choice) (out domain.PlayOutcome, err error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	started := time.Now()
	defer func() { metrics.ObserveOperation("play_round", started, err) }()

	if !player.Valid() {
		return domain.PlayOutcome{}, fmt.Errorf("%w: %q", domain.ErrInvalidChoice, player)
	}

	computer := s.chooser.Choose()
	result := game.Resolve(player, computer)

	stats, err := s.ledger.RecordRound(ctx, sessionID, player, computer, result)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("play round failed")
		return domain.PlayOutcome{}, fmt.Errorf("failed to play round: %w", err)
	}
	metrics.RecordRound(string(result))

	s.logger.Info().
		Str("session_id", sessionID).
		Str("player_choice", string(player)).
		Str("computer_choice", string(computer)).
		Str("result", string(result)).
		Int64("total_games", stats.TotalGames).
		Msg("round played")

	return domain.PlayOutcome{
		PlayerChoice:   player,
		ComputerChoice: computer,
		Result:         result,
		SessionStats:   stats,
	}, nil
}

func (s *RoundService) GetSessionStats(ctx context.Context, sessionID string) (stats domain.SessionStats, err error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	started := time.Now()
	defer func() { metrics.ObserveOperation("get_session_stats", started, err) }()

	s.logger.Debug().Str("session_id", sessionID).Msg("getting session stats")

	stats, err = s.ledger.GetAggregate(ctx, sessionID)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("failed to get session stats: %w", err)
	}
	return stats, nil
}

func (s *RoundService) GetGameHistory(ctx context.Context, sessionID string) (rounds []domain.Round, err error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	started := time.Now()
	defer func() { metrics.ObserveOperation("get_game_history", started, err) }()

	rounds, err = s.ledger.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game history: %w", err)
	}

	s.logger.Debug().Str("session_id", sessionID).Int("count", len(rounds)).Msg("game history loaded")
	return rounds, nil
}

func (s *RoundService) ResetSession(ctx context.Context, sessionID string) (stats domain.SessionStats, err error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	started := time.Now()
	defer func() { metrics.ObserveOperation("reset_session", started, err) }()

	stats, err = s.ledger.Reset(ctx, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("session reset failed")
		return domain.SessionStats{}, fmt.Errorf("failed to reset session: %w", err)
	}
	metrics.RecordReset()
	return stats, nil
}

func (s *RoundService) Healthcheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.ledger.Ping(ctx)
}
