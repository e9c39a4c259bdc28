package model_test

import (
	"testing"
	"time"

	"github.com/minhct/gh-event-pipeline/internal/model"
	. "github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func TestMergeSnapshot(t *testing.T) {
	Convey("Given snapshot merge semantics", t, func() {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		later := base.Add(time.Hour)

		Convey("When a stale event carries fewer stars but fills the language", func() {
			existing := model.Repo{
				RepoID:        42,
				FullName:      "octocat/hello",
				Language:      nil,
				TotalStars:    50,
				LastUpdatedAt: base,
			}
			incoming := model.Repo{
				RepoID:        42,
				FullName:      "octocat/hello",
				Language:      strPtr("Go"),
				TotalStars:    30,
				LastUpdatedAt: later,
			}
			merged := model.MergeSnapshot(existing, incoming)

			Convey("Then the language is filled and stars do not regress", func() {
				So(merged.Language, ShouldNotBeNil)
				So(*merged.Language, ShouldEqual, "Go")
				So(merged.TotalStars, ShouldEqual, 50)
				So(merged.LastUpdatedAt.Equal(later), ShouldBeTrue)
			})
		})

		Convey("When a later event carries a null description", func() {
			existing := model.Repo{
				RepoID:      42,
				Description: strPtr("a fine repository"),
				TotalStars:  10,
			}
			incoming := model.Repo{
				RepoID:      42,
				Description: nil,
				TotalStars:  12,
			}
			merged := model.MergeSnapshot(existing, incoming)

			Convey("Then the first non-null observation is kept", func() {
				So(merged.Description, ShouldNotBeNil)
				So(*merged.Description, ShouldEqual, "a fine repository")
				So(merged.TotalStars, ShouldEqual, 12)
			})
		})

		Convey("When the full name changes upstream", func() {
			existing := model.Repo{RepoID: 42, FullName: "octocat/old-name"}
			incoming := model.Repo{RepoID: 42, FullName: "octocat/new-name"}
			merged := model.MergeSnapshot(existing, incoming)

			Convey("Then the incoming name wins", func() {
				So(merged.FullName, ShouldEqual, "octocat/new-name")
			})
		})
	})
}

func TestTruncateString(t *testing.T) {
	Convey("Given the truncation helpers", t, func() {
		Convey("When the string fits", func() {
			So(model.TruncateString("short", 500), ShouldEqual, "short")
		})

		Convey("When the string is too long", func() {
			long := make([]byte, 600)
			for i := range long {
				long[i] = 'x'
			}
			So(len(model.TruncateString(string(long), 500)), ShouldEqual, 500)
		})

		Convey("When truncating through a nil pointer", func() {
			So(model.TruncateStringPtr(nil, 500), ShouldBeNil)
		})
	})
}
