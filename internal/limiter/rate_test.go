package limiter_test

import (
	"testing"

	"github.com/minhct/gh-event-pipeline/internal/limiter"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRateLimiter(t *testing.T) {
	Convey("Given a limiter of 3 requests per second", t, func() {
		rl := limiter.NewRateLimiter(3)

		Convey("When requesting inside the budget", func() {
			So(rl.Allow(), ShouldBeTrue)
			So(rl.Allow(), ShouldBeTrue)
			So(rl.Allow(), ShouldBeTrue)

			Convey("Then the fourth request in the same second is denied", func() {
				So(rl.Allow(), ShouldBeFalse)
			})
		})
	})
}
