// Package processor consumes queued events, scores them, and records the
// results. Malformed events are skipped and consumer hiccups are absorbed,
// but a storage failure aborts the batch and terminates the loop: carrying
// on would silently lose the buffered, un-flushed work.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/model"
	"github.com/minhct/gh-event-pipeline/internal/velocity"
	"github.com/minhct/gh-event-pipeline/pkg/log"
	"github.com/segmentio/kafka-go"
)

// Consumer pulls bounded batches of queued messages and commits their
// offsets once the batch has been durably flushed.
type Consumer interface {
	FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer persists one batch transactionally.
type Writer interface {
	Flush(ctx context.Context, repos []model.Repo, metrics []model.Metric) error
}

type Processor struct {
	Logger   log.Logger
	Config   *cfg.Config
	Consumer Consumer
	Writer   Writer

	starCache  map[int64]int64
	metricsBuf []model.Metric
	reposBuf   map[int64]model.Repo

	totalProcessed int64
	now            func() time.Time
}

func NewProcessor(logger log.Logger, config *cfg.Config, consumer Consumer, writer Writer) (*Processor, error) {
	return &Processor{
		Logger:     logger,
		Config:     config,
		Consumer:   consumer,
		Writer:     writer,
		starCache:  make(map[int64]int64),
		metricsBuf: make([]model.Metric, 0, config.Processor.BatchSize),
		reposBuf:   make(map[int64]model.Repo),
		now:        time.Now,
	}, nil
}

// processMessage decodes one queued event into the buffers. Returns false
// for anything skipped; skipping is never an error.
func (p *Processor) processMessage(ctx context.Context, msg kafka.Message) bool {
	var event model.EventMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.Logger.Warn(ctx, "Skipping undecodable message at offset %d: %v", msg.Offset, err)
		return false
	}

	if !velocity.IsSupported(event.Type) {
		return false
	}
	if event.Repo.ID == 0 || event.Repo.Name == "" {
		return false
	}

	now := p.now().UTC()
	snapshot := model.Repo{
		RepoID:        event.Repo.ID,
		FullName:      model.TruncateString(event.Repo.Name, 255),
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	if repoInfo := event.Payload.Repository; repoInfo != nil {
		snapshot.Language = repoInfo.Language
		snapshot.Description = model.TruncateStringPtr(repoInfo.Description, 500)
		snapshot.TotalStars = repoInfo.StargazersCount
		if repoInfo.StargazersCount > 0 {
			p.starCache[event.Repo.ID] = repoInfo.StargazersCount
		}
	}
	if existing, ok := p.reposBuf[event.Repo.ID]; ok {
		snapshot = model.MergeSnapshot(existing, snapshot)
	}
	p.reposBuf[event.Repo.ID] = snapshot

	totalStars := p.starCache[event.Repo.ID]

	starsDelta := 0
	if velocity.IsStarEvent(event.Type) {
		starsDelta = 1
	}

	p.metricsBuf = append(p.metricsBuf, model.Metric{
		RepoID:        event.Repo.ID,
		RepoName:      model.TruncateString(event.Repo.Name, 255),
		EventType:     event.Type,
		Timestamp:     p.parseEventTime(event.CreatedAt),
		StarsDelta:    starsDelta,
		VelocityScore: velocity.Score(event.Type, totalStars),
	})
	return true
}

// parseEventTime falls back to the current time on a missing or malformed
// timestamp; an event is never rejected for a bad timestamp alone.
func (p *Processor) parseEventTime(createdAt string) time.Time {
	if createdAt == "" {
		return p.now().UTC()
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return p.now().UTC()
	}
	return ts.UTC()
}

// flush writes both buffers in one transaction and clears them on success.
func (p *Processor) flush(ctx context.Context) error {
	if len(p.metricsBuf) == 0 && len(p.reposBuf) == 0 {
		return nil
	}

	repos := make([]model.Repo, 0, len(p.reposBuf))
	for _, snapshot := range p.reposBuf {
		repos = append(repos, snapshot)
	}

	if err := p.Writer.Flush(ctx, repos, p.metricsBuf); err != nil {
		return err
	}

	p.Logger.Debug(ctx, "Flushed %d metrics and %d repository snapshots", len(p.metricsBuf), len(repos))
	p.metricsBuf = make([]model.Metric, 0, p.Config.Processor.BatchSize)
	p.reposBuf = make(map[int64]model.Repo)
	return nil
}

// ProcessBatch pulls one bounded batch, buffers every accepted event,
// flushing mid-batch whenever the buffer reaches the configured size, and
// commits the offsets only after everything pulled has been flushed.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	wait := time.Duration(p.Config.Processor.FetchMaxWait) * time.Second
	msgs, err := p.Consumer.FetchBatch(ctx, p.Config.Processor.BatchSize, wait)
	if err != nil {
		return 0, fmt.Errorf("consumer fetch failed: %w", err)
	}

	processed := 0
	for _, msg := range msgs {
		if p.processMessage(ctx, msg) {
			processed++
		}
		if len(p.metricsBuf) >= p.Config.Processor.BatchSize {
			if err := p.flush(ctx); err != nil {
				return processed, err
			}
		}
	}

	if err := p.flush(ctx); err != nil {
		return processed, err
	}

	if len(msgs) > 0 {
		if err := p.Consumer.Commit(ctx, msgs...); err != nil {
			return processed, fmt.Errorf("offset commit failed: %w", err)
		}
	}

	return processed, nil
}

// Run consumes until ctx is cancelled. A storage error is returned to the
// caller so the process can exit and restart under supervision.
func (p *Processor) Run(ctx context.Context) error {
	p.Logger.Info(ctx, "Starting event processor")
	p.Logger.Info(ctx, "Kafka topic: %s, group: %s", p.Config.Kafka.Topic, p.Config.Kafka.ConsumerGroup)
	p.Logger.Info(ctx, "Batch size: %d", p.Config.Processor.BatchSize)

	statsInterval := time.Duration(p.Config.Processor.StatsInterval) * time.Second
	lastStats := p.now()

	for {
		if ctx.Err() != nil {
			p.shutdown()
			return nil
		}

		processed, err := p.ProcessBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.shutdown()
				return nil
			}
			p.Logger.Error(ctx, "Processing cycle failed: %v", err)
			if cerr := p.Consumer.Close(); cerr != nil {
				p.Logger.Error(ctx, "Failed to close consumer: %v", cerr)
			}
			return err
		}
		p.totalProcessed += int64(processed)

		if p.now().Sub(lastStats) >= statsInterval {
			p.Logger.Info(ctx, "Stats: %d total events processed, %d repos tracked", p.totalProcessed, len(p.starCache))
			lastStats = p.now()
		}

		// Avoid a tight loop when the topic is idle
		if processed == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

// shutdown performs one best-effort final flush before releasing the
// consumer. Offsets for anything flushed here were already committed or
// will be replayed; replays are tolerated by the idempotent upsert.
func (p *Processor) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p.Logger.Info(ctx, "Shutting down gracefully...")
	if err := p.flush(ctx); err != nil {
		p.Logger.Error(ctx, "Error during final flush: %v", err)
	}
	if err := p.Consumer.Close(); err != nil {
		p.Logger.Error(ctx, "Failed to close consumer: %v", err)
	}
	p.Logger.Info(ctx, "Shutdown complete. Processed %d events total.", p.totalProcessed)
}
