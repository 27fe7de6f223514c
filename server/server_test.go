package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/circuit-led/frames"
	"github.com/theoremus-urban-solutions/circuit-led/participant"
	"github.com/theoremus-urban-solutions/circuit-led/playback"
	"github.com/theoremus-urban-solutions/circuit-led/track"
)

var red = participant.Color{R: 0xFF}

type fakeController struct {
	mu       sync.Mutex
	commands []string
	snap     playback.Snapshot
}

func (c *fakeController) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, name)
}

func (c *fakeController) Start()  { c.record("start") }
func (c *fakeController) Stop()   { c.record("stop") }
func (c *fakeController) Toggle() { c.record("toggle") }
func (c *fakeController) Reset()  { c.record("reset") }

func (c *fakeController) Snapshot() playback.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *fakeController) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

func playingSnapshot() playback.Snapshot {
	return playback.Snapshot{
		State:      playback.Playing{},
		RunID:      uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		FrameIndex: 1,
		FrameCount: 3,
		Frame: &frames.Frame{
			TimestampMS:  1693141136200,
			MarkerColors: map[int]participant.Color{7: red},
		},
		Blink:     true,
		Elapsed:   61*time.Second + 250*time.Millisecond,
		Refilling: true,
	}
}

func newTestServer(t *testing.T, ctl Controller) (*httptest.Server, *Broadcaster) {
	t.Helper()
	ix, err := track.NewLinearIndex([]track.Marker{
		{ID: 1, Position: track.Point{X: -10, Y: 0}},
		{ID: 2, Position: track.Point{X: 30, Y: 20}},
	})
	if err != nil {
		t.Fatalf("NewLinearIndex: %v", err)
	}
	hub := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	ts := httptest.NewServer(New(0, ctl, ix, hub).Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return ts, hub
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeController{snap: playingSnapshot()})

	var got healthResponse
	getJSON(t, ts.URL+"/api/health", &got)
	want := healthResponse{Status: "ok", State: "playing", Frames: 3}
	if got != want {
		t.Errorf("health = %+v, want %+v", got, want)
	}
}

func TestPlaybackSnapshot(t *testing.T) {
	ts, _ := newTestServer(t, &fakeController{snap: playingSnapshot()})

	var got struct {
		State      string `json:"state"`
		RunID      string `json:"run_id"`
		FrameIndex int    `json:"frame_index"`
		FrameCount int    `json:"frame_count"`
		Blink      bool   `json:"blink"`
		Elapsed    string `json:"elapsed"`
		ElapsedMS  int64  `json:"elapsed_ms"`
		Refilling  bool   `json:"refilling"`
		Frame      struct {
			TimestampMS  int64             `json:"timestamp_ms"`
			MarkerColors map[string]string `json:"marker_colors"`
		} `json:"frame"`
	}
	getJSON(t, ts.URL+"/api/playback", &got)

	if got.State != "playing" || got.FrameIndex != 1 || got.FrameCount != 3 || !got.Blink || !got.Refilling {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if got.RunID != "7d444840-9dc0-11d1-b245-5ffdce74fad2" {
		t.Errorf("run id %q", got.RunID)
	}
	if got.Elapsed != "00:01:01.25" || got.ElapsedMS != 61250 {
		t.Errorf("elapsed %q (%d ms)", got.Elapsed, got.ElapsedMS)
	}
	if got.Frame.TimestampMS != 1693141136200 {
		t.Errorf("frame timestamp %d", got.Frame.TimestampMS)
	}
	if c := got.Frame.MarkerColors["7"]; c != red.Hex() {
		t.Errorf("marker 7 color %q, want %q", c, red.Hex())
	}
}

func TestPlaybackSnapshot_Idle(t *testing.T) {
	ts, _ := newTestServer(t, &fakeController{snap: playback.Snapshot{State: playback.Idle{}}})

	var got map[string]any
	getJSON(t, ts.URL+"/api/playback", &got)
	if got["state"] != "idle" {
		t.Errorf("state %v", got["state"])
	}
	if _, ok := got["run_id"]; ok {
		t.Error("idle snapshot without a run should omit run_id")
	}
	if _, ok := got["frame"]; ok {
		t.Error("snapshot without frames should omit frame")
	}
	if got["elapsed"] != "00:00:00.00" {
		t.Errorf("elapsed %v", got["elapsed"])
	}
}

func TestTrack(t *testing.T) {
	ts, _ := newTestServer(t, &fakeController{})

	var got trackView
	getJSON(t, ts.URL+"/api/track", &got)
	if len(got.Markers) != 2 || got.Markers[1].ID != 2 {
		t.Fatalf("markers = %+v", got.Markers)
	}
	want := track.Bounds{MinX: -10, MaxX: 30, MinY: 0, MaxY: 20}
	if got.Bounds != want {
		t.Errorf("bounds = %+v, want %+v", got.Bounds, want)
	}
}

func TestCommands(t *testing.T) {
	ctl := &fakeController{}
	ts, _ := newTestServer(t, ctl)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodPost, "/api/playback/start", http.StatusAccepted},
		{http.MethodPost, "/api/playback/toggle", http.StatusAccepted},
		{http.MethodPost, "/api/playback/reset", http.StatusAccepted},
		{http.MethodPost, "/api/playback/stop", http.StatusAccepted},
		{http.MethodGet, "/api/playback/start", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/playback", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/playback/rewind", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(""))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s %s: %v", tt.method, tt.path, err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	got := ctl.recorded()
	want := []string{"start", "toggle", "reset", "stop"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func readView(t *testing.T, conn *websocket.Conn) playbackView {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var v playbackView
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return v
}

func TestWebSocket(t *testing.T) {
	ctl := &fakeController{snap: playback.Snapshot{State: playback.Idle{}}}
	ts, hub := newTestServer(t, ctl)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if v := readView(t, conn); v.State != "idle" {
		t.Errorf("initial state %q", v.State)
	}
	if hub.Clients() != 1 {
		t.Errorf("clients = %d, want 1", hub.Clients())
	}

	hub.Publish(playingSnapshot())
	v := readView(t, conn)
	if v.State != "playing" || v.FrameIndex != 1 || !v.Blink {
		t.Errorf("pushed snapshot = %+v", v)
	}
	t.Logf("✓ pushed frame %d of %d at %s", v.FrameIndex, v.FrameCount, v.Elapsed)
}

// dialPeer connects to a server that forwards every message it receives to got.
func dialPeer(t *testing.T, got chan<- string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- string(msg)
		}
	}))
	t.Cleanup(peer.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(peer.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBroadcast_DropsFailedClient(t *testing.T) {
	hub := NewBroadcaster()
	healthyGot := make(chan string, 1)
	healthy := dialPeer(t, healthyGot)
	broken := dialPeer(t, make(chan string, 1))
	_ = broken.Close()

	hub.clients[healthy] = true
	hub.clients[broken] = true

	hub.Broadcast([]byte(`{"state":"playing"}`))

	if n := hub.Clients(); n != 1 {
		t.Fatalf("clients = %d, want 1 after a failed write", n)
	}
	if !hub.clients[healthy] {
		t.Error("healthy client was dropped")
	}
	select {
	case msg := <-healthyGot:
		if msg != `{"state":"playing"}` {
			t.Errorf("healthy client got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("healthy client did not receive the broadcast")
	}

	hub.Broadcast([]byte(`{"state":"idle"}`))
	select {
	case msg := <-healthyGot:
		if msg != `{"state":"idle"}` {
			t.Errorf("healthy client got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second broadcast did not arrive")
	}
}
