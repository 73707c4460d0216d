package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"rps-tracker/internal/api/rpsv1"
	"rps-tracker/internal/constants"
)

const sessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Client talks to rps.v1.RoundService using the Connect unary JSON protocol.
type Client struct {
	baseURL string
	client  *fasthttp.Client
}

// Error is a non-200 response decoded from the Connect error body.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rps api error: %s (http %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("rps api error: %s: %s (http %d)", e.Code, e.Message, e.Status)
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ClientTimeout,
			WriteTimeout:        constants.ClientTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// NewSessionID mirrors the browser client's "session-<random>" ids.
func NewSessionID() (string, error) {
	id, err := gonanoid.Generate(sessionIDAlphabet, constants.SessionIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return constants.SessionIDPrefix + id, nil
}

func (c *Client) PlayRound(ctx context.Context, sessionID, choice string) (*rpsv1.PlayRoundResponse, error) {
	return doRequest[rpsv1.PlayRoundResponse](ctx, c, constants.PlayRoundProcedure,
		&rpsv1.PlayRoundRequest{SessionID: sessionID, PlayerChoice: choice})
}

func (c *Client) GetSessionStats(ctx context.Context, sessionID string) (*rpsv1.SessionStats, error) {
	return doRequest[rpsv1.SessionStats](ctx, c, constants.GetSessionStatsProcedure,
		&rpsv1.SessionRequest{SessionID: sessionID})
}

func (c *Client) GetGameHistory(ctx context.Context, sessionID string) (*rpsv1.GameHistoryResponse, error) {
	return doRequest[rpsv1.GameHistoryResponse](ctx, c, constants.GetGameHistoryProcedure,
		&rpsv1.SessionRequest{SessionID: sessionID})
}

func (c *Client) ResetSession(ctx context.Context, sessionID string) (*rpsv1.SessionStats, error) {
	return doRequest[rpsv1.SessionStats](ctx, c, constants.ResetSessionProcedure,
		&rpsv1.SessionRequest{SessionID: sessionID})
}

func (c *Client) Healthcheck(ctx context.Context) (*rpsv1.HealthcheckResponse, error) {
	return doRequest[rpsv1.HealthcheckResponse](ctx, c, constants.HealthcheckProcedure, &rpsv1.HealthcheckRequest{})
}

// LoadSession fetches stats and history in parallel.
func (c *Client) LoadSession(ctx context.Context, sessionID string) (*rpsv1.SessionStats, []rpsv1.GameRound, error) {
	g, gCtx := errgroup.WithContext(ctx)
	var stats *rpsv1.SessionStats
	var history *rpsv1.GameHistoryResponse

	g.Go(func() error {
		var err error
		stats, err = c.GetSessionStats(gCtx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = c.GetGameHistory(gCtx, sessionID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	return stats, history.Rounds, nil
}

// PlayMany plays every choice against one session with at most parallel
// requests in flight. Results come back in input order.
func (c *Client) PlayMany(ctx context.Context, sessionID string, choices []string, parallel int) ([]*rpsv1.PlayRoundResponse, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]*rpsv1.PlayRoundResponse, len(choices))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, choice := range choices {
		g.Go(func() error {
			resp, err := c.PlayRound(gCtx, sessionID, choice)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func doRequest[T any](ctx context.Context, client *Client, procedure string, body any) (*T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(client.baseURL + procedure)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Connect-Protocol-Version", "1")
	req.SetBody(payload)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		apiErr := &Error{Status: resp.StatusCode(), Code: "unknown"}
		var wire rpsv1.Error
		if err := json.Unmarshal(resp.Body(), &wire); err == nil && wire.Code != "" {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Message
		}
		return nil, apiErr
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
