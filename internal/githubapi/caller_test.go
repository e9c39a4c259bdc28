package githubapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/minhct/gh-event-pipeline/cfg"
	"github.com/minhct/gh-event-pipeline/internal/githubapi"
	"github.com/minhct/gh-event-pipeline/pkg/log"
	. "github.com/smartystreets/goconvey/convey"
)

func callerConfig(url string) *cfg.Config {
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()
	config.Github.EventsUrl = url
	config.Github.RequestsPerSecond = 100
	return config
}

func TestFetchEvents(t *testing.T) {
	Convey("Given the events API caller", t, func() {
		logger, _ := log.NewCslLogger()
		ctx := context.Background()

		Convey("When the feed changes and then does not", func() {
			var lastIfNoneMatch string
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				lastIfNoneMatch = r.Header.Get("If-None-Match")
				if lastIfNoneMatch == `"etag-1"` {
					w.WriteHeader(http.StatusNotModified)
					return
				}
				w.Header().Set("ETag", `"etag-1"`)
				w.Write([]byte(`[{"id":"1","type":"WatchEvent","repo":{"id":42,"name":"octocat/hello"},"created_at":"2025-06-01T12:00:00Z"}]`))
			}))
			defer server.Close()

			tokens, _ := githubapi.NewTokenPool(logger, []string{"tok-a"})
			caller := githubapi.NewCaller(logger, callerConfig(server.URL), tokens)

			first, err1 := caller.FetchEvents(ctx)
			second, err2 := caller.FetchEvents(ctx)

			Convey("Then the first fetch returns events and stores the ETag", func() {
				So(err1, ShouldBeNil)
				So(first.Status, ShouldEqual, githubapi.StatusFetched)
				So(first.Events, ShouldHaveLength, 1)
				So(first.Events[0].Repo.ID, ShouldEqual, 42)
			})

			Convey("Then the second fetch is conditional and reports unchanged", func() {
				So(err2, ShouldBeNil)
				So(second.Status, ShouldEqual, githubapi.StatusUnchanged)
				So(lastIfNoneMatch, ShouldEqual, `"etag-1"`)
				So(calls, ShouldEqual, 2)
			})
		})

		Convey("When the upstream rejects the credential", func() {
			var authHeaders []string
			responses := []int{http.StatusOK, http.StatusForbidden, http.StatusOK}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				authHeaders = append(authHeaders, r.Header.Get("Authorization"))
				status := responses[0]
				responses = responses[1:]
				if status == http.StatusOK {
					w.Header().Set("ETag", `"etag-x"`)
					w.Write([]byte(`[]`))
					return
				}
				w.WriteHeader(status)
			}))
			defer server.Close()

			tokens, _ := githubapi.NewTokenPool(logger, []string{"tok-a", "tok-b"})
			caller := githubapi.NewCaller(logger, callerConfig(server.URL), tokens)

			_, _ = caller.FetchEvents(ctx) // primes the ETag with tok-a
			limited, err := caller.FetchEvents(ctx)
			_, _ = caller.FetchEvents(ctx)

			Convey("Then the outcome is rate limited, not an error", func() {
				So(err, ShouldBeNil)
				So(limited.Status, ShouldEqual, githubapi.StatusRateLimited)
			})

			Convey("Then the token rotated and the stale ETag was discarded", func() {
				So(tokens.Current(), ShouldEqual, "tok-b")
				So(authHeaders, ShouldHaveLength, 3)
				So(authHeaders[2], ShouldEqual, "Bearer tok-b")
				// The third request must not reuse the ETag earned by tok-a
				So(authHeaders[1], ShouldEqual, "Bearer tok-a")
			})
		})

		Convey("When the upstream returns a server error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			tokens, _ := githubapi.NewTokenPool(logger, []string{"tok-a"})
			caller := githubapi.NewCaller(logger, callerConfig(server.URL), tokens)

			result, err := caller.FetchEvents(ctx)

			Convey("Then it surfaces as a retryable error", func() {
				So(err, ShouldNotBeNil)
				So(result, ShouldBeNil)
			})
		})
	})
}
