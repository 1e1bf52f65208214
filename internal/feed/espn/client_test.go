package espn_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/calloway/gridfax/internal/feed/espn"
	"github.com/calloway/gridfax/internal/stats"
)

func TestGameSummary(t *testing.T) {
	Convey("Given a summary endpoint serving JSON", t, func() {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			fmt.Fprint(w, summaryFixture)
		}))
		Reset(srv.Close)

		client := espn.New(srv.URL, "")

		Convey("When a game summary is fetched", func() {
			payload, err := client.GameSummary(context.Background(), "401772510")

			Convey("Then the decoded payload and request shape are right", func() {
				So(err, ShouldBeNil)
				So(payload["boxscore"], ShouldNotBeNil)
				So(gotQuery, ShouldContainSubstring, "event=401772510")
				So(gotQuery, ShouldContainSubstring, "region=us")
			})
		})

		Convey("When records are fetched directly", func() {
			records, err := client.GameRecords(context.Background(), "401772510")

			Convey("Then extraction runs on the payload", func() {
				So(err, ShouldBeNil)
				So(records[stats.CategoryPassing], ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given an endpoint serving an HTML block page", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html><body>Access Denied</body></html>")
		}))
		Reset(srv.Close)

		client := espn.New(srv.URL, "")

		Convey("When a game summary is fetched", func() {
			payload, err := client.GameSummary(context.Background(), "401772510")

			Convey("Then the HTML page is reported instead of a decode error", func() {
				So(payload, ShouldBeNil)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "HTML")
			})
		})
	})

	Convey("Given an endpoint returning a server error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		Reset(srv.Close)

		client := espn.New(srv.URL, "")

		Convey("When a game summary is fetched", func() {
			_, err := client.GameSummary(context.Background(), "401772510")

			Convey("Then the status surfaces in the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "500")
			})
		})
	})
}
