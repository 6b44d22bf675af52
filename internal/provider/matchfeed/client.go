// Package matchfeed provides the HTTP client for the external match data
// provider.
//
// The provider uses header auth and a strict per-minute quota. Rate limiting
// is handled two ways: a local token bucket keeps steady-state traffic under
// the quota, and a 429 response surfaces as ErrRateLimited so callers can
// skip the fixture until the next tick instead of blocking.
package matchfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited signals a 429 from the provider. Transient: the caller
// skips this fixture this tick and retries naturally on the next one.
var ErrRateLimited = errors.New("match feed rate limited")

// MatchState is the normalized live state of one match.
type MatchState struct {
	Status    string
	Minute    int
	HomeScore int
	AwayScore int
}

// Client is the HTTP client for the match data provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a match feed client with rate limiting.
func NewClient(baseURL, apiKey string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// matchResponse is the provider's match detail shape. Score halves beyond
// fullTime and odds blocks are ignored.
type matchResponse struct {
	Match struct {
		Status string `json:"status"`
		Minute *int   `json:"minute"`
		Score  struct {
			FullTime struct {
				Home *int `json:"home"`
				Away *int `json:"away"`
			} `json:"fullTime"`
		} `json:"score"`
	} `json:"match"`
}

// Match fetches the current state of one match by the provider's match id.
func (c *Client) Match(ctx context.Context, matchID int) (*MatchState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := fmt.Sprintf("%s/matches/%d", c.baseURL, matchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request match %d: %w", matchID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("match %d: %w", matchID, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("match feed returned %d for match %d: %s",
			resp.StatusCode, matchID, truncate(body, 200))
	}

	var result matchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode match %d: %w", matchID, err)
	}

	state := &MatchState{Status: result.Match.Status}
	if result.Match.Minute != nil {
		state.Minute = *result.Match.Minute
	}
	if result.Match.Score.FullTime.Home != nil {
		state.HomeScore = *result.Match.Score.FullTime.Home
	}
	if result.Match.Score.FullTime.Away != nil {
		state.AwayScore = *result.Match.Score.FullTime.Away
	}
	return state, nil
}

// SeasonMatch is one entry in the provider's season schedule listing.
type SeasonMatch struct {
	ID        int
	Matchday  int
	HomeTeam  string
	AwayTeam  string
	Status    string
	KickoffAt *time.Time
}

// scheduleResponse is the provider's season listing shape.
type scheduleResponse struct {
	Matches []struct {
		ID       int    `json:"id"`
		UTCDate  string `json:"utcDate"`
		Status   string `json:"status"`
		Matchday int    `json:"matchday"`
		HomeTeam struct {
			Name string `json:"name"`
		} `json:"homeTeam"`
		AwayTeam struct {
			Name string `json:"name"`
		} `json:"awayTeam"`
	} `json:"matches"`
}

// Season fetches the full match schedule for a season, identified by its
// start year. Used by fixture seeding, not by the poll loop.
func (c *Client) Season(ctx context.Context, startYear int) ([]SeasonMatch, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := fmt.Sprintf("%s/matches?season=%d", c.baseURL, startYear)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request season %d: %w", startYear, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("season %d: %w", startYear, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("match feed returned %d for season %d: %s",
			resp.StatusCode, startYear, truncate(body, 200))
	}

	var result scheduleResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode season %d: %w", startYear, err)
	}

	matches := make([]SeasonMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		sm := SeasonMatch{
			ID:       m.ID,
			Matchday: m.Matchday,
			HomeTeam: m.HomeTeam.Name,
			AwayTeam: m.AwayTeam.Name,
			Status:   m.Status,
		}
		if m.UTCDate != "" {
			if t, perr := time.Parse(time.RFC3339, m.UTCDate); perr == nil {
				sm.KickoffAt = &t
			}
		}
		matches = append(matches, sm)
	}
	return matches, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
