// Package poller drives the ingestion side of the pipeline: fetch the
// public events feed, keep only new supported events, and publish them to
// the events topic keyed by repository id. A poll cycle never raises;
// every upstream problem degrades to a zero-event cycle so the schedule
// keeps running.
package poller

import (
	"context"
	"strconv"
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/dedup"
	"github.com/minhct/gh-event-pipeline/internal/githubapi"
	"github.com/minhct/gh-event-pipeline/internal/model"
	"github.com/minhct/gh-event-pipeline/internal/velocity"
	"github.com/minhct/gh-event-pipeline/pkg/log"
)

// Fetcher performs one conditional fetch. A non-nil error is a
// network-level failure and the only retryable outcome.
type Fetcher interface {
	FetchEvents(ctx context.Context) (*githubapi.FetchResult, error)
}

// Publisher stages keyed messages and delivers them on Flush.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Flush(ctx context.Context) error
	Close() error
}

type Poller struct {
	Logger    log.Logger
	Config    *cfg.Config
	Fetcher   Fetcher
	Publisher Publisher

	window         *dedup.Window
	pollCount      int64
	totalPublished int64
	now            func() time.Time
}

func NewPoller(logger log.Logger, config *cfg.Config, fetcher Fetcher, publisher Publisher) (*Poller, error) {
	return &Poller{
		Logger:    logger,
		Config:    config,
		Fetcher:   fetcher,
		Publisher: publisher,
		window:    dedup.NewWindow(config.Poller.DedupCapacity),
		now:       time.Now,
	}, nil
}

// fetchWithRetry retries network-level failures within the cycle, doubling
// the delay from the base up to the configured cap.
func (p *Poller) fetchWithRetry(ctx context.Context) (*githubapi.FetchResult, error) {
	delay := time.Duration(p.Config.Poller.RetryBase) * time.Second
	maxDelay := time.Duration(p.Config.Poller.RetryMax) * time.Second

	var lastErr error
	for attempt := 1; attempt <= p.Config.Poller.MaxRetries; attempt++ {
		result, err := p.Fetcher.FetchEvents(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		p.Logger.Warn(ctx, "Fetch attempt %d/%d failed: %v", attempt, p.Config.Poller.MaxRetries, err)

		if attempt < p.Config.Poller.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
	return nil, lastErr
}

// PollOnce runs a single poll cycle and returns how many events were
// published. Failures are logged, never returned; the next scheduled
// cycle is the recovery path.
func (p *Poller) PollOnce(ctx context.Context) int {
	result, err := p.fetchWithRetry(ctx)
	if err != nil {
		p.Logger.Error(ctx, "Failed to fetch events after %d attempts: %v", p.Config.Poller.MaxRetries, err)
		return 0
	}

	switch result.Status {
	case githubapi.StatusUnchanged:
		p.Logger.Debug(ctx, "No new events (304 Not Modified)")
		return 0
	case githubapi.StatusRateLimited:
		// Token already rotated by the caller, recover on next cycle
		return 0
	}

	published := 0
	for _, event := range result.Events {
		if !p.accept(event) {
			continue
		}
		msg := model.EventMessage{
			RawEvent:   event,
			IngestedAt: p.now().UTC(),
		}
		key := strconv.FormatInt(event.Repo.ID, 10)
		if err := p.Publisher.Publish(ctx, key, msg); err != nil {
			p.Logger.Error(ctx, "Failed to stage event %s: %v", event.ID, err)
			continue
		}
		published++
	}

	// Bound unacknowledged-message exposure to one cycle
	if err := p.Publisher.Flush(ctx); err != nil {
		p.Logger.Error(ctx, "Failed to flush producer: %v", err)
	}

	if published > 0 {
		p.Logger.Info(ctx, "Published %d events", published)
	}
	return published
}

// accept filters one fetched event: supported type, a usable repository
// reference, and not seen before inside the dedup window.
func (p *Poller) accept(event githubapi.RawEvent) bool {
	if !velocity.IsSupported(event.Type) {
		return false
	}
	if event.Repo.ID == 0 || event.Repo.Name == "" {
		return false
	}
	if event.ID == "" {
		return false
	}
	return p.window.IsNew(event.ID)
}

// Run polls at the configured interval until ctx is cancelled, then
// flushes and releases the publisher.
func (p *Poller) Run(ctx context.Context) {
	p.Logger.Info(ctx, "Starting event poller")
	p.Logger.Info(ctx, "Poll interval: %ds, page size: %d", p.Config.Poller.Interval, p.Config.Github.PerPage)
	p.Logger.Info(ctx, "Kafka topic: %s", p.Config.Kafka.Topic)

	ticker := time.NewTicker(time.Duration(p.Config.Poller.Interval) * time.Second)
	defer ticker.Stop()

	for {
		p.pollCount++
		p.totalPublished += int64(p.PollOnce(ctx))

		if p.pollCount%10 == 0 {
			p.Logger.Info(ctx, "Stats: %d total events after %d polls", p.totalPublished, p.pollCount)
		}

		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case <-ticker.C:
		}
	}
}

// shutdown guarantees delivery of staged messages before process exit.
func (p *Poller) shutdown() {
	ctx := context.Background()
	p.Logger.Info(ctx, "Shutting down gracefully...")

	if err := p.Publisher.Flush(ctx); err != nil {
		p.Logger.Error(ctx, "Final flush failed: %v", err)
	}
	if err := p.Publisher.Close(); err != nil {
		p.Logger.Error(ctx, "Failed to close producer: %v", err)
	}

	p.Logger.Info(ctx, "Shutdown complete. Published %d events total.", p.totalPublished)
}
