package websocket_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/calloway/gridfax/internal/api/websocket"
	"github.com/calloway/gridfax/internal/events"
)

type testServer struct {
	srv   *httptest.Server
	wsURL string
}

func (t *testServer) close() { t.srv.Close() }

func httptestServer(hub *websocket.Hub) *testServer {
	srv := httptest.NewServer(websocket.Handler(hub))
	return &testServer{srv: srv, wsURL: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func waitForClients(hub *websocket.Hub, want int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub.ClientCount() == want
}

func readEnvelope(conn *gws.Conn) (events.Envelope, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return events.Envelope{}, err
	}
	var envelope events.Envelope
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return events.Envelope{}, err
	}
	return envelope, nil
}

func TestProgressFeed(t *testing.T) {
	Convey("Given a running hub behind an HTTP server", t, func() {
		hub := websocket.NewHub()
		go hub.Run()

		srv := httptestServer(hub)
		Reset(srv.close)

		Convey("When a client connects", func() {
			conn, _, err := gws.DefaultDialer.Dial(srv.wsURL, nil)
			So(err, ShouldBeNil)
			Reset(func() { conn.Close() })
			So(waitForClients(hub, 1), ShouldBeTrue)

			Convey("Then broadcast envelopes reach it as JSON", func() {
				hub.Send(events.Envelope{
					Type: "game_processed",
					Data: map[string]interface{}{"week": 3, "game_id": "401772510"},
				})

				envelope, err := readEnvelope(conn)
				So(err, ShouldBeNil)
				So(envelope.Type, ShouldEqual, "game_processed")
				data := envelope.Data.(map[string]interface{})
				So(data["game_id"], ShouldEqual, "401772510")
				So(data["week"], ShouldEqual, 3)
			})

			Convey("Then disconnecting removes it from the hub", func() {
				conn.Close()
				So(waitForClients(hub, 0), ShouldBeTrue)
			})
		})

		Convey("When two clients are connected", func() {
			first, _, err := gws.DefaultDialer.Dial(srv.wsURL, nil)
			So(err, ShouldBeNil)
			Reset(func() { first.Close() })

			second, _, err := gws.DefaultDialer.Dial(srv.wsURL, nil)
			So(err, ShouldBeNil)
			Reset(func() { second.Close() })

			So(waitForClients(hub, 2), ShouldBeTrue)

			Convey("Then both receive the same broadcast", func() {
				hub.Send(events.Envelope{Type: "run_started", Data: map[string]interface{}{"season": 2025}})

				for _, conn := range []*gws.Conn{first, second} {
					envelope, err := readEnvelope(conn)
					So(err, ShouldBeNil)
					So(envelope.Type, ShouldEqual, "run_started")
				}
			})
		})
	})
}
