// The caller performs the actual events API request: authentication with
// the current token, conditional fetch through the stored ETag, and
// classification of the response into an explicit outcome the poller can
// branch on. Network-level failures are returned as errors and are the
// only retryable outcome.
package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/limiter"
	"github.com/minhct/gh-event-pipeline/pkg/log"
)

type FetchStatus int

const (
	StatusFetched FetchStatus = iota
	StatusUnchanged
	StatusRateLimited
)

type FetchResult struct {
	Status FetchStatus
	Events []RawEvent
}

type Caller struct {
	Logger  log.Logger
	Config  *cfg.Config
	Tokens  *TokenPool
	limiter *limiter.RateLimiter
	client  *http.Client
	etag    string
}

func NewCaller(logger log.Logger, config *cfg.Config, tokens *TokenPool) *Caller {
	return &Caller{
		Logger:  logger,
		Config:  config,
		Tokens:  tokens,
		limiter: limiter.NewRateLimiter(config.Github.RequestsPerSecond),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchEvents performs one conditional fetch against the events API.
// On rate limiting it rotates the token and discards the ETag, since the
// ETag is scoped to the credential that produced it.
func (c *Caller) FetchEvents(ctx context.Context) (*FetchResult, error) {
	if err := c.waitForSlot(ctx); err != nil {
		return nil, err
	}

	fullUrl := fmt.Sprintf("%s?per_page=%d", c.Config.Github.EventsUrl, c.Config.Github.PerPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.Config.App.Name+"/"+c.Config.App.Version)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Tokens.Current()))
	if c.etag != "" {
		req.Header.Set("If-None-Match", c.etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot send request: %w", err)
	}
	defer resp.Body.Close()

	rateRemaining := resp.Header.Get("X-RateLimit-Remaining")
	c.Logger.Debug(ctx, "Rate limit remaining: %s", rateRemaining)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &FetchResult{Status: StatusUnchanged}, nil

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		c.Logger.Warn(ctx, "Rate limited on token %d/%d", c.Tokens.idx+1, c.Tokens.Size())
		c.Tokens.Rotate(ctx)
		c.etag = ""
		return &FetchResult{Status: StatusRateLimited}, nil

	case resp.StatusCode == http.StatusOK:
		if newEtag := resp.Header.Get("ETag"); newEtag != "" {
			c.etag = newEtag
		}
		var events []RawEvent
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			return nil, fmt.Errorf("cannot decode response: %w", err)
		}
		return &FetchResult{Status: StatusFetched, Events: events}, nil

	default:
		return nil, fmt.Errorf("cannot received response: %v", resp.Status)
	}
}

// waitForSlot blocks until the client-side rate limiter admits a request.
func (c *Caller) waitForSlot(ctx context.Context) error {
	for !c.limiter.Allow() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}
