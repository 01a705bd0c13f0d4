package broker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/state"
)

func dialView(t *testing.T, b *Broker) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(b.handleView))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial view feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrameFor reads frames until one for field arrives.
func readFrameFor(t *testing.T, conn *websocket.Conn, field string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)

		var f struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		}
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f.Field == field {
			return f.Value
		}
	}
	t.Fatalf("no frame for field %q", field)
	return nil
}

func TestViewFeedReplaysCurrentState(t *testing.T) {
	view := state.NewViewState()
	view.ClockSize.Publish(prefs.ClockLarge)
	view.Use24HrClock.Publish(true)

	b := New("127.0.0.1:0", view, &fakeCommands{}, zap.NewNop())
	conn := dialView(t, b)

	var size prefs.ClockSize
	if err := json.Unmarshal(readFrameFor(t, conn, "clockSize"), &size); err != nil {
		t.Fatalf("decode clockSize frame: %v", err)
	}
	if size != prefs.ClockLarge {
		t.Errorf("clockSize = %q, want %q", size, prefs.ClockLarge)
	}
}

func TestViewFeedStreamsUpdates(t *testing.T) {
	view := state.NewViewState()
	b := New("127.0.0.1:0", view, &fakeCommands{}, zap.NewNop())
	conn := dialView(t, b)

	// Give the per-connection pipes a moment to subscribe.
	time.Sleep(50 * time.Millisecond)
	view.MediaControlEnabled.Publish(true)

	var enabled bool
	if err := json.Unmarshal(readFrameFor(t, conn, "isMediaControlEnabled"), &enabled); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if !enabled {
		t.Error("isMediaControlEnabled = false, want true")
	}
}

func TestViewFeedDispatchesCommands(t *testing.T) {
	cmds := &fakeCommands{}
	b := New("127.0.0.1:0", state.NewViewState(), cmds, zap.NewNop())
	conn := dialView(t, b)

	msg := `{"command": "requestSearch", "request": {"query": "files"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write command: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cmds.mu.Lock()
		n := len(cmds.queries)
		cmds.mu.Unlock()
		if n == 1 {
			cmds.mu.Lock()
			defer cmds.mu.Unlock()
			if cmds.queries[0] != "files" {
				t.Errorf("query = %q, want %q", cmds.queries[0], "files")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for command dispatch")
}
