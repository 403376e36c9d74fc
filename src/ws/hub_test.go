package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

// fakeSocket records every frame written to it.
type fakeSocket struct {
	mu     sync.Mutex
	frames []Envelope
}

func (s *fakeSocket) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, env)
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) Close(code websocket.StatusCode, reason string) error { return nil }

func (s *fakeSocket) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Event
	}
	return out
}

func (s *fakeSocket) lastData(t *testing.T, event string, into any) bool {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Event == event {
			if err := json.Unmarshal(s.frames[i].Data, into); err != nil {
				t.Fatalf("decode %s payload: %v", event, err)
			}
			return true
		}
	}
	return false
}

func roomClient(id, userID, deviceType string) (*client, *fakeSocket) {
	sock := &fakeSocket{}
	c := newClient(id, userID, sock)
	if deviceType != "" {
		c.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceType})
	}
	return c, sock
}

func TestHubFanoutByDeviceType(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	console, consoleSock := roomClient("c1", "u1", deviceTypeConsole)
	overlay, overlaySock := roomClient("c2", "u1", deviceTypeOverlay)
	extension, extensionSock := roomClient("c3", "u1", "extension")
	hub.Join("sess-1", console)
	hub.Join("sess-1", overlay)
	hub.Join("sess-1", extension)

	hub.BroadcastCopilot(ctx, "sess-1", KindCopilotPresence, map[string]int{"count": 3})
	hub.BroadcastCopilotToClients(ctx, "sess-1", KindCopilotAIToken, map[string]string{"token": "x"})
	hub.BroadcastCopilotToConsoles(ctx, "sess-1", KindCopilotCaptureSaved, map[string]int{"count": 1})

	if got := len(consoleSock.events()); got != 3 {
		t.Errorf("console frames = %d, want 3 (room + clients + consoles)", got)
	}
	if got := len(overlaySock.events()); got != 2 {
		t.Errorf("overlay frames = %d, want 2 (room + clients)", got)
	}
	if got := len(extensionSock.events()); got != 1 {
		t.Errorf("extension frames = %d, want 1 (room only)", got)
	}

	var token map[string]string
	if !overlaySock.lastData(t, "copilot_ai_token", &token) {
		t.Fatal("overlay did not receive ai_token")
	}
	if token["token"] != "x" {
		t.Errorf("token payload = %v", token)
	}
}

func TestHubLeaveCounts(t *testing.T) {
	hub := NewHub()
	a, _ := roomClient("a", "u1", deviceTypeConsole)
	b, _ := roomClient("b", "u2", deviceTypeOverlay)
	hub.Join("room", a)
	hub.Join("room", b)

	if got := hub.RoomSize("room"); got != 2 {
		t.Errorf("RoomSize = %d, want 2", got)
	}
	if got := hub.Leave("room", a); got != 1 {
		t.Errorf("Leave = %d, want 1 remaining", got)
	}
	if got := hub.Leave("room", b); got != 0 {
		t.Errorf("Leave = %d, want 0 remaining", got)
	}
	if got := hub.RoomSize("room"); got != 0 {
		t.Errorf("RoomSize after empty = %d, want 0", got)
	}
}

func TestHubStreamSupersede(t *testing.T) {
	hub := NewHub()

	first := make(chan struct{})
	h1 := hub.RegisterStream("sess-1", func() { close(first) })

	second := make(chan struct{})
	hub.RegisterStream("sess-1", func() { close(second) })

	select {
	case <-first:
	default:
		t.Error("registering a second stream did not cancel the first")
	}

	// The superseded request releasing its stale handle must not evict
	// the successor's.
	hub.ReleaseStream("sess-1", h1)

	hub.CancelStream("sess-1")
	select {
	case <-second:
	default:
		t.Error("CancelStream did not cancel the active stream")
	}

	// No handle left; further cancels are no-ops.
	hub.CancelStream("sess-1")
}

func TestScreenshotCacheCap(t *testing.T) {
	cache := NewScreenshotCache()
	for i := 0; i < 10; i++ {
		cache.Add("sess-1", string(rune('a'+i)))
	}
	images := cache.Get("sess-1")
	if len(images) != maxScreenshots {
		t.Fatalf("len = %d, want %d", len(images), maxScreenshots)
	}
	if images[0] != "e" || images[len(images)-1] != "j" {
		t.Errorf("images = %v, want most recent %d kept", images, maxScreenshots)
	}

	cache.Clear("sess-1")
	if got := cache.Get("sess-1"); len(got) != 0 {
		t.Errorf("after clear = %v", got)
	}
}

func TestPendingCodeCacheTake(t *testing.T) {
	cache := NewPendingCodeCache()
	cache.Set("sess-1", PendingCodeRequest{Provider: "openai"})

	if _, ok := cache.Peek("sess-1"); !ok {
		t.Error("Peek found nothing")
	}
	req, ok := cache.Take("sess-1")
	if !ok || req.Provider != "openai" {
		t.Errorf("Take = %+v, %v", req, ok)
	}
	if _, ok := cache.Take("sess-1"); ok {
		t.Error("second Take should find nothing")
	}
}
