package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"

	"rps-tracker/internal/config"
	"rps-tracker/internal/domain"
)

// KEYS: round sequence, session round list, session stats hash.
// ARGV: player, computer, result, played_at (unix ns), stats field.
const recordRoundLua = `
local id = redis.call('INCR', KEYS[1])
redis.call('LPUSH', KEYS[2], tostring(id) .. '|' .. ARGV[1] .. '|' .. ARGV[2] .. '|' .. ARGV[3] .. '|' .. ARGV[4])
redis.call('HINCRBY', KEYS[3], ARGV[5], 1)
redis.call('HINCRBY', KEYS[3], 'total_games', 1)
redis.call('HSET', KEYS[3], 'last_played', ARGV[4])
local s = redis.call('HMGET', KEYS[3], 'wins', 'losses', 'ties', 'total_games')
return {id, tonumber(s[1] or '0'), tonumber(s[2] or '0'), tonumber(s[3] or '0'), tonumber(s[4] or '0')}
`

var recordRoundScript = valkey.NewLuaScript(recordRoundLua)

// ValkeyStore keeps each session as a newest-first list of encoded rounds
// plus a stats hash. Writes are single scripts or single commands, so they
// are atomic on the server.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	logger zerolog.Logger
}

func NewValkeyStore(client valkey.Client, prefix string, logger zerolog.Logger) *ValkeyStore {
	if prefix == "" {
		prefix = "rps"
	}
	return &ValkeyStore{client: client, prefix: prefix, logger: logger}
}

// NewValkeyClient connects with client side caching disabled; the store
// never reads the same key often enough to benefit from it.
func NewValkeyClient(cfg config.ValkeyConfig) (valkey.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("valkey addr is empty")
	}

	opts := valkey.ClientOption{
		InitAddress:  []string{addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	}
	if cfg.DialTimeout > 0 {
		opts.Dialer.Timeout = cfg.DialTimeout
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client failed: %w", err)
	}
	return client, nil
}

func (s *ValkeyStore) seqKey() string { return s.prefix + ":round_seq" }

func (s *ValkeyStore) roundsKey(sessionID string) string {
	return fmt.Sprintf("%s:rounds:%s", s.prefix, sessionID)
}

func (s *ValkeyStore) statsKey(sessionID string) string {
	return fmt.Sprintf("%s:stats:%s", s.prefix, sessionID)
}

func (s *ValkeyStore) RecordRound(ctx context.Context, round domain.Round) (domain.SessionStats, error) {
	field, err := statsField(round.Result)
	if err != nil {
		return domain.SessionStats{}, err
	}

	playedAt := round.PlayedAt.UnixNano()
	resp := recordRoundScript.Exec(ctx, s.client,
		[]string{s.seqKey(), s.roundsKey(round.SessionID), s.statsKey(round.SessionID)},
		[]string{
			string(round.PlayerChoice),
			string(round.ComputerChoice),
			string(round.Result),
			strconv.FormatInt(playedAt, 10),
			field,
		},
	)

	values, err := resp.ToArray()
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("record round script failed: %w", err)
	}
	if len(values) != 5 {
		return domain.SessionStats{}, fmt.Errorf("unexpected record round reply len: %d", len(values))
	}

	nums := make([]int64, len(values))
	for i, v := range values {
		if nums[i], err = v.AsInt64(); err != nil {
			return domain.SessionStats{}, fmt.Errorf("parse record round reply: %w", err)
		}
	}

	lastPlayed := fromUnixNano(playedAt)
	s.logger.Debug().Int64("round_id", nums[0]).Str("session_id", round.SessionID).Msg("round stored")

	return domain.SessionStats{
		SessionID:  round.SessionID,
		Wins:       nums[1],
		Losses:     nums[2],
		Ties:       nums[3],
		TotalGames: nums[4],
		LastPlayed: &lastPlayed,
	}, nil
}

func (s *ValkeyStore) GetStats(ctx context.Context, sessionID string) (domain.SessionStats, bool, error) {
	cmd := s.client.B().Hgetall().Key(s.statsKey(sessionID)).Build()
	fields, err := s.client.Do(ctx, cmd).AsStrMap()
	if err != nil {
		return domain.SessionStats{}, false, fmt.Errorf("hgetall stats failed: %w", err)
	}
	if len(fields) == 0 {
		return domain.SessionStats{}, false, nil
	}

	stats := domain.SessionStats{SessionID: sessionID}
	for name, dst := range map[string]*int64{
		"wins":        &stats.Wins,
		"losses":      &stats.Losses,
		"ties":        &stats.Ties,
		"total_games": &stats.TotalGames,
	} {
		if raw, ok := fields[name]; ok {
			if *dst, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return domain.SessionStats{}, false, fmt.Errorf("parse stats field %s: %w", name, err)
			}
		}
	}
	if raw, ok := fields["last_played"]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.SessionStats{}, false, fmt.Errorf("parse stats field last_played: %w", err)
		}
		t := fromUnixNano(n)
		stats.LastPlayed = &t
	}
	return stats, true, nil
}

func (s *ValkeyStore) ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error) {
	cmd := s.client.B().Lrange().Key(s.roundsKey(sessionID)).Start(0).Stop(-1).Build()
	entries, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("lrange rounds failed: %w", err)
	}

	rounds := make([]domain.Round, 0, len(entries))
	for _, entry := range entries {
		round, err := decodeRound(sessionID, entry)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}

	// LPUSH order already matches for a single writer; sort anyway so
	// concurrent writers from other processes cannot break the contract.
	slices.SortStableFunc(rounds, func(a, b domain.Round) int {
		if c := b.PlayedAt.Compare(a.PlayedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return rounds, nil
}

func (s *ValkeyStore) DeleteSession(ctx context.Context, sessionID string) error {
	cmd := s.client.B().Del().Key(s.roundsKey(sessionID), s.statsKey(sessionID)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("del session keys failed: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("valkey ping failed: %w", err)
	}
	return nil
}

func statsField(result domain.Result) (string, error) {
	switch result {
	case domain.Win:
		return "wins", nil
	case domain.Loss:
		return "losses", nil
	case domain.Tie:
		return "ties", nil
	}
	return "", fmt.Errorf("unknown result %q", result)
}

// decodeRound parses "id|player|computer|result|played_at".
func decodeRound(sessionID, entry string) (domain.Round, error) {
	parts := strings.Split(entry, "|")
	if len(parts) != 5 {
		return domain.Round{}, fmt.Errorf("malformed round entry %q", entry)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.Round{}, fmt.Errorf("parse round id: %w", err)
	}
	playedAt, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return domain.Round{}, fmt.Errorf("parse round played_at: %w", err)
	}
	return domain.Round{
		ID:             id,
		SessionID:      sessionID,
		PlayerChoice:   domain.Choice(parts[1]),
		ComputerChoice: domain.Choice(parts[2]),
		Result:         domain.Result(parts[3]),
		PlayedAt:       fromUnixNano(playedAt),
	}, nil
}
