package poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/githubapi"
	"github.com/minhct/gh-event-pipeline/internal/model"
	"github.com/minhct/gh-event-pipeline/pkg/log"
	. "github.com/smartystreets/goconvey/convey"
)

type fetchStep struct {
	result *githubapi.FetchResult
	err    error
}

type scriptedFetcher struct {
	steps    []fetchStep
	attempts int
}

func (f *scriptedFetcher) FetchEvents(ctx context.Context) (*githubapi.FetchResult, error) {
	f.attempts++
	if len(f.steps) == 0 {
		return &githubapi.FetchResult{Status: githubapi.StatusUnchanged}, nil
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step.result, step.err
}

type publishedMessage struct {
	key   string
	value interface{}
}

type recordingPublisher struct {
	published  []publishedMessage
	flushes    int
	closed     bool
	publishErr error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, publishedMessage{key: key, value: value})
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error { p.flushes++; return nil }
func (p *recordingPublisher) Close() error                    { p.closed = true; return nil }

func testConfig() *cfg.Config {
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()
	config.Poller.RetryBase = 0
	config.Poller.RetryMax = 0
	return config
}

func newTestPoller(fetcher Fetcher, publisher Publisher) *Poller {
	logger, _ := log.NewCslLogger()
	p, _ := NewPoller(logger, testConfig(), fetcher, publisher)
	return p
}

func rawEvent(id, eventType string, repoID int64, repoName string) githubapi.RawEvent {
	return githubapi.RawEvent{
		ID:   id,
		Type: eventType,
		Repo: githubapi.EventRepo{ID: repoID, Name: repoName},
	}
}

func TestPollOnce(t *testing.T) {
	Convey("Given a poller", t, func() {
		ctx := context.Background()

		Convey("When a fetch returns a mix of events", func() {
			fetcher := &scriptedFetcher{steps: []fetchStep{{
				result: &githubapi.FetchResult{
					Status: githubapi.StatusFetched,
					Events: []githubapi.RawEvent{
						rawEvent("1", "WatchEvent", 100, "octocat/hello"),
						rawEvent("2", "MembershipEvent", 100, "octocat/hello"), // unsupported
						rawEvent("3", "ForkEvent", 0, ""),                      // no repo reference
						rawEvent("1", "WatchEvent", 100, "octocat/hello"),      // duplicate id
						rawEvent("4", "PushEvent", 200, "octocat/world"),
					},
				},
			}}}
			publisher := &recordingPublisher{}
			p := newTestPoller(fetcher, publisher)

			count := p.PollOnce(ctx)

			Convey("Then only new supported events with a repo reference are published", func() {
				So(count, ShouldEqual, 2)
				So(publisher.published, ShouldHaveLength, 2)
			})

			Convey("Then messages are keyed by the repository id", func() {
				So(publisher.published[0].key, ShouldEqual, "100")
				So(publisher.published[1].key, ShouldEqual, "200")
			})

			Convey("Then the queued value carries the ingestion timestamp", func() {
				msg, ok := publisher.published[0].value.(model.EventMessage)
				So(ok, ShouldBeTrue)
				So(msg.IngestedAt.IsZero(), ShouldBeFalse)
				So(msg.ID, ShouldEqual, "1")

				// The wire form must expose ingested_at alongside the raw fields
				jsonBytes, err := json.Marshal(msg)
				So(err, ShouldBeNil)
				So(string(jsonBytes), ShouldContainSubstring, `"ingested_at"`)
				So(string(jsonBytes), ShouldContainSubstring, `"WatchEvent"`)
			})

			Convey("Then the producer was flushed once for the cycle", func() {
				So(publisher.flushes, ShouldEqual, 1)
			})
		})

		Convey("When the upstream reports not modified", func() {
			fetcher := &scriptedFetcher{steps: []fetchStep{{
				result: &githubapi.FetchResult{Status: githubapi.StatusUnchanged},
			}}}
			publisher := &recordingPublisher{}
			p := newTestPoller(fetcher, publisher)

			count := p.PollOnce(ctx)

			Convey("Then the cycle yields zero events", func() {
				So(count, ShouldEqual, 0)
				So(publisher.published, ShouldBeEmpty)
			})
		})

		Convey("When the upstream rate limits the credential", func() {
			fetcher := &scriptedFetcher{steps: []fetchStep{{
				result: &githubapi.FetchResult{Status: githubapi.StatusRateLimited},
			}}}
			publisher := &recordingPublisher{}
			p := newTestPoller(fetcher, publisher)

			count := p.PollOnce(ctx)

			Convey("Then the cycle yields zero events without raising", func() {
				So(count, ShouldEqual, 0)
				So(publisher.published, ShouldBeEmpty)
			})
		})

		Convey("When the network fails twice before succeeding", func() {
			fetcher := &scriptedFetcher{steps: []fetchStep{
				{err: errors.New("connection reset")},
				{err: errors.New("connection reset")},
				{result: &githubapi.FetchResult{
					Status: githubapi.StatusFetched,
					Events: []githubapi.RawEvent{rawEvent("9", "ReleaseEvent", 300, "octocat/rel")},
				}},
			}}
			publisher := &recordingPublisher{}
			p := newTestPoller(fetcher, publisher)

			count := p.PollOnce(ctx)

			Convey("Then the cycle recovers within its retry budget", func() {
				So(fetcher.attempts, ShouldEqual, 3)
				So(count, ShouldEqual, 1)
			})
		})

		Convey("When every attempt fails", func() {
			fetcher := &scriptedFetcher{steps: []fetchStep{
				{err: errors.New("timeout")},
				{err: errors.New("timeout")},
				{err: errors.New("timeout")},
			}}
			publisher := &recordingPublisher{}
			p := newTestPoller(fetcher, publisher)

			count := p.PollOnce(ctx)

			Convey("Then the failure is absorbed and the cycle yields zero events", func() {
				So(fetcher.attempts, ShouldEqual, 3)
				So(count, ShouldEqual, 0)
			})
		})

		Convey("When events repeat across cycles", func() {
			result := &githubapi.FetchResult{
				Status: githubapi.StatusFetched,
				Events: []githubapi.RawEvent{rawEvent("77", "WatchEvent", 500, "octocat/again")},
			}
			fetcher := &scriptedFetcher{steps: []fetchStep{{result: result}, {result: result}}}
			publisher := &recordingPublisher{}
			p := newTestPoller(fetcher, publisher)

			first := p.PollOnce(ctx)
			second := p.PollOnce(ctx)

			Convey("Then the dedup window suppresses the replay", func() {
				So(first, ShouldEqual, 1)
				So(second, ShouldEqual, 0)
			})
		})
	})
}
