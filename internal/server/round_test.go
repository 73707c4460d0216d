package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-tracker/internal/api/rpsv1"
	"rps-tracker/internal/codec"
	"rps-tracker/internal/constants"
	"rps-tracker/internal/database"
	"rps-tracker/internal/db"
	"rps-tracker/internal/domain"
	"rps-tracker/internal/game"
	"rps-tracker/internal/ledger"
	"rps-tracker/internal/repository"
	"rps-tracker/internal/service"
)

func newTestServer(t *testing.T, chooser game.Chooser) *httptest.Server {
	t.Helper()
	sqlDB, err := database.New(filepath.Join(t.TempDir(), "rps.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := repository.NewSQLiteStore(sqlDB, db.New(sqlDB), zerolog.Nop())
	svc := service.NewRoundService(chooser, ledger.New(store, zerolog.Nop()), zerolog.Nop())

	path, handler := NewRoundServiceHandler(NewRoundServer(svc, zerolog.Nop()))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient[Req, Res any](srv *httptest.Server, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](srv.Client(), srv.URL+procedure, connect.WithCodec(codec.JSON{}))
}

func TestRoundServer_PlayStatsHistoryReset(t *testing.T) {
	srv := newTestServer(t, game.NewSequenceChooser(domain.Rock, domain.Paper, domain.Scissors))
	ctx := context.Background()

	play := newClient[rpsv1.PlayRoundRequest, rpsv1.PlayRoundResponse](srv, constants.PlayRoundProcedure)
	stats := newClient[rpsv1.SessionRequest, rpsv1.SessionStats](srv, constants.GetSessionStatsProcedure)
	history := newClient[rpsv1.SessionRequest, rpsv1.GameHistoryResponse](srv, constants.GetGameHistoryProcedure)
	reset := newClient[rpsv1.SessionRequest, rpsv1.SessionStats](srv, constants.ResetSessionProcedure)

	resp, err := play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: "s1", PlayerChoice: "paper"}))
	require.NoError(t, err)
	assert.Equal(t, "rock", resp.Msg.ComputerChoice)
	assert.Equal(t, "win", resp.Msg.Result)
	require.NotNil(t, resp.Msg.SessionStats)
	assert.Equal(t, int64(1), resp.Msg.SessionStats.Wins)
	assert.Equal(t, int64(1), resp.Msg.SessionStats.TotalGames)
	assert.NotNil(t, resp.Msg.SessionStats.LastPlayed)

	resp, err = play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: "s1", PlayerChoice: "rock"}))
	require.NoError(t, err)
	assert.Equal(t, "loss", resp.Msg.Result)

	resp, err = play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: "s1", PlayerChoice: "scissors"}))
	require.NoError(t, err)
	assert.Equal(t, "tie", resp.Msg.Result)

	st, err := stats.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Equal(t, [4]int64{1, 1, 1, 3}, [4]int64{st.Msg.Wins, st.Msg.Losses, st.Msg.Ties, st.Msg.TotalGames})

	h, err := history.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "s1"}))
	require.NoError(t, err)
	require.Len(t, h.Msg.Rounds, 3)
	assert.Equal(t, "tie", h.Msg.Rounds[0].Result)
	assert.True(t, h.Msg.Rounds[0].PlayedAt.Equal(*st.Msg.LastPlayed))

	r, err := reset.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Equal(t, rpsv1.SessionStats{SessionID: "s1"}, *r.Msg)

	h, err = history.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Empty(t, h.Msg.Rounds)
}

func TestRoundServer_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, game.FixedChooser(domain.Rock))
	play := newClient[rpsv1.PlayRoundRequest, rpsv1.PlayRoundResponse](srv, constants.PlayRoundProcedure)
	stats := newClient[rpsv1.SessionRequest, rpsv1.SessionStats](srv, constants.GetSessionStatsProcedure)
	ctx := context.Background()

	_, err := play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: "s1", PlayerChoice: "lizard"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: "  ", PlayerChoice: "rock"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = stats.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	// nothing was recorded by the rejected calls
	st, err := stats.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Zero(t, st.Msg.TotalGames)
}

func TestRoundServer_SessionIDIsOpaque(t *testing.T) {
	srv := newTestServer(t, game.FixedChooser(domain.Rock))
	play := newClient[rpsv1.PlayRoundRequest, rpsv1.PlayRoundResponse](srv, constants.PlayRoundProcedure)
	stats := newClient[rpsv1.SessionRequest, rpsv1.SessionStats](srv, constants.GetSessionStatsProcedure)
	ctx := context.Background()

	resp, err := play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: " a ", PlayerChoice: "paper"}))
	require.NoError(t, err)
	assert.Equal(t, " a ", resp.Msg.SessionStats.SessionID)

	padded, err := stats.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: " a "}))
	require.NoError(t, err)
	assert.Equal(t, " a ", padded.Msg.SessionID)
	assert.Equal(t, int64(1), padded.Msg.TotalGames)

	plain, err := stats.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "a"}))
	require.NoError(t, err)
	assert.Equal(t, "a", plain.Msg.SessionID)
	assert.Zero(t, plain.Msg.TotalGames)
	assert.Nil(t, plain.Msg.LastPlayed)
}

func TestRoundServer_ChoiceMustMatchExactly(t *testing.T) {
	srv := newTestServer(t, game.FixedChooser(domain.Rock))
	play := newClient[rpsv1.PlayRoundRequest, rpsv1.PlayRoundResponse](srv, constants.PlayRoundProcedure)
	stats := newClient[rpsv1.SessionRequest, rpsv1.SessionStats](srv, constants.GetSessionStatsProcedure)
	ctx := context.Background()

	for _, choice := range []string{"PAPER", "Paper", " paper"} {
		_, err := play.CallUnary(ctx, connect.NewRequest(&rpsv1.PlayRoundRequest{SessionID: "s1", PlayerChoice: choice}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err), "choice %q", choice)
	}

	st, err := stats.CallUnary(ctx, connect.NewRequest(&rpsv1.SessionRequest{SessionID: "s1"}))
	require.NoError(t, err)
	assert.Zero(t, st.Msg.TotalGames)
}

func TestRoundServer_WireFormat(t *testing.T) {
	srv := newTestServer(t, game.FixedChooser(domain.Rock))

	post := func(procedure, body string) (int, map[string]any) {
		resp, err := srv.Client().Post(srv.URL+procedure, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	code, out := post(constants.GetSessionStatsProcedure, `{"session_id":"fresh"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"session_id":  "fresh",
		"wins":        float64(0),
		"losses":      float64(0),
		"ties":        float64(0),
		"total_games": float64(0),
		"last_played": nil,
	}, out)

	code, out = post(constants.PlayRoundProcedure, `{"session_id":"s1","player_choice":"paper"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paper", out["player_choice"])
	assert.Equal(t, "rock", out["computer_choice"])
	assert.Equal(t, "win", out["result"])
	statsOut := out["session_stats"].(map[string]any)
	_, err := time.Parse(time.RFC3339Nano, statsOut["last_played"].(string))
	assert.NoError(t, err)

	code, out = post(constants.PlayRoundProcedure, `{"session_id":"s1","player_choice":"spock"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_argument", out["code"])
}

func TestRoundServer_Healthcheck(t *testing.T) {
	srv := newTestServer(t, game.FixedChooser(domain.Rock))
	health := newClient[rpsv1.HealthcheckRequest, rpsv1.HealthcheckResponse](srv, constants.HealthcheckProcedure)

	resp, err := health.CallUnary(context.Background(), connect.NewRequest(&rpsv1.HealthcheckRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Msg.Status)
	assert.WithinDuration(t, time.Now(), resp.Msg.Timestamp, time.Minute)
}
