package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"rps-tracker/internal/api/rpsv1"
	"rps-tracker/internal/codec"
	"rps-tracker/internal/constants"
	"rps-tracker/internal/domain"
	"rps-tracker/internal/service"
)

type RoundServer struct {
	roundSvc *service.RoundService
	logger   zerolog.Logger
}

func NewRoundServer(roundSvc *service.RoundService, logger zerolog.Logger) *RoundServer {
	return &RoundServer{roundSvc: roundSvc, logger: logger}
}

// NewRoundServiceHandler mounts every procedure of rps.v1.RoundService and
// returns the path prefix to register the handler under.
func NewRoundServiceHandler(s *RoundServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(codec.JSON{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(constants.PlayRoundProcedure, connect.NewUnaryHandler(constants.PlayRoundProcedure, s.PlayRound, opts...))
	mux.Handle(constants.GetSessionStatsProcedure, connect.NewUnaryHandler(constants.GetSessionStatsProcedure, s.GetSessionStats, opts...))
	mux.Handle(constants.GetGameHistoryProcedure, connect.NewUnaryHandler(constants.GetGameHistoryProcedure, s.GetGameHistory, opts...))
	mux.Handle(constants.ResetSessionProcedure, connect.NewUnaryHandler(constants.ResetSessionProcedure, s.ResetSession, opts...))
	mux.Handle(constants.HealthcheckProcedure, connect.NewUnaryHandler(constants.HealthcheckProcedure, s.Healthcheck, opts...))
	return constants.ServicePath, mux
}

func (s *RoundServer) PlayRound(ctx context.Context, req *connect.Request[rpsv1.PlayRoundRequest]) (*connect.Response[rpsv1.PlayRoundResponse], error) {
	sessionID, err := domain.ValidateSessionID(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	choice, err := domain.ParseChoice(req.Msg.PlayerChoice)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	out, err := s.roundSvc.PlayRound(ctx, sessionID, choice)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}

	return connect.NewResponse(&rpsv1.PlayRoundResponse{
		PlayerChoice:   string(out.PlayerChoice),
		ComputerChoice: string(out.ComputerChoice),
		Result:         string(out.Result),
		SessionStats:   toProtoStats(out.SessionStats),
	}), nil
}

func (s *RoundServer) GetSessionStats(ctx context.Context, req *connect.Request[rpsv1.SessionRequest]) (*connect.Response[rpsv1.SessionStats], error) {
	sessionID, err := domain.ValidateSessionID(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	stats, err := s.roundSvc.GetSessionStats(ctx, sessionID)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}
	return connect.NewResponse(toProtoStats(stats)), nil
}

func (s *RoundServer) GetGameHistory(ctx context.Context, req *connect.Request[rpsv1.SessionRequest]) (*connect.Response[rpsv1.GameHistoryResponse], error) {
	sessionID, err := domain.ValidateSessionID(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	rounds, err := s.roundSvc.GetGameHistory(ctx, sessionID)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}

	resp := &rpsv1.GameHistoryResponse{Rounds: make([]rpsv1.GameRound, len(rounds))}
	for i, r := range rounds {
		resp.Rounds[i] = rpsv1.GameRound{
			ID:             r.ID,
			SessionID:      r.SessionID,
			PlayerChoice:   string(r.PlayerChoice),
			ComputerChoice: string(r.ComputerChoice),
			Result:         string(r.Result),
			PlayedAt:       r.PlayedAt,
		}
	}
	return connect.NewResponse(resp), nil
}

func (s *RoundServer) ResetSession(ctx context.Context, req *connect.Request[rpsv1.SessionRequest]) (*connect.Response[rpsv1.SessionStats], error) {
	sessionID, err := domain.ValidateSessionID(req.Msg.SessionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	stats, err := s.roundSvc.ResetSession(ctx, sessionID)
	if err != nil {
		return nil, s.toConnectError(ctx, err)
	}
	return connect.NewResponse(toProtoStats(stats)), nil
}

func (s *RoundServer) Healthcheck(ctx context.Context, _ *connect.Request[rpsv1.HealthcheckRequest]) (*connect.Response[rpsv1.HealthcheckResponse], error) {
	if err := s.roundSvc.Healthcheck(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("healthcheck failed")
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("storage unavailable"))
	}
	return connect.NewResponse(&rpsv1.HealthcheckResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}), nil
}

// toConnectError keeps storage details out of responses; they are logged
// instead.
func (s *RoundServer) toConnectError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrEmptySessionID),
		errors.Is(err, domain.ErrSessionIDLong):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, errors.New("request timed out"))
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, errors.New("request canceled"))
	}

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}
	logger.Error().Err(err).Msg("request failed")
	return connect.NewError(connect.CodeInternal, errors.New("storage failure"))
}

func toProtoStats(st domain.SessionStats) *rpsv1.SessionStats {
	return &rpsv1.SessionStats{
		SessionID:  st.SessionID,
		Wins:       st.Wins,
		Losses:     st.Losses,
		Ties:       st.Ties,
		TotalGames: st.TotalGames,
		LastPlayed: st.LastPlayed,
	}
}
