package ws

import (
	"context"
	"sync"
)

// deviceTypeConsole and deviceTypeOverlay are the two client roles that
// receive AI answer traffic. Ingestion-only extensions join with other types.
const (
	deviceTypeConsole = "console"
	deviceTypeOverlay = "overlay"
)

// Hub tracks room membership and owns the process-local per-session caches
// and in-flight stream cancellation handles. All state here is rebuilt from
// client reconnects after a restart.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*client

	screenshots *ScreenshotCache
	pendingCode *PendingCodeCache

	streamMu sync.Mutex
	streams  map[string]*streamHandle
}

// streamHandle identifies one registered in-flight stream, so release and
// cancel operations act only on the stream they belong to.
type streamHandle struct {
	cancel context.CancelFunc
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[string]*client),
		screenshots: NewScreenshotCache(),
		pendingCode: NewPendingCodeCache(),
		streams:     make(map[string]*streamHandle),
	}
}

// Join adds the client to a room. A client may be in several rooms (one
// copilot session, one meeting).
func (h *Hub) Join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*client)
		h.rooms[room] = members
	}
	members[c.id] = c
}

// Leave removes the client from a room and returns the remaining member count.
func (h *Hub) Leave(room string, c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return 0
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(h.rooms, room)
		return 0
	}
	return len(members)
}

// RoomSize returns the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) members(room string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

// BroadcastCopilot sends a copilot event to every connection in the room.
func (h *Hub) BroadcastCopilot(ctx context.Context, room string, kind EventKind, payload any) {
	for _, c := range h.members(room) {
		c.sendCopilot(ctx, kind, payload)
	}
}

// BroadcastCopilotToConsoles sends a copilot event to console-typed
// connections only. Used for screenshot cues aimed at the control surface.
func (h *Hub) BroadcastCopilotToConsoles(ctx context.Context, room string, kind EventKind, payload any) {
	for _, c := range h.members(room) {
		m := c.copilotRoom()
		if m != nil && m.deviceType == deviceTypeConsole {
			c.sendCopilot(ctx, kind, payload)
		}
	}
}

// BroadcastCopilotToClients sends a copilot event to console and overlay
// connections, excluding raw ingestion-only clients. Token and answer
// delivery uses this pattern.
func (h *Hub) BroadcastCopilotToClients(ctx context.Context, room string, kind EventKind, payload any) {
	for _, c := range h.members(room) {
		m := c.copilotRoom()
		if m != nil && (m.deviceType == deviceTypeConsole || m.deviceType == deviceTypeOverlay) {
			c.sendCopilot(ctx, kind, payload)
		}
	}
}

// Broadcast sends a plain event to every connection in the room.
func (h *Hub) Broadcast(ctx context.Context, room string, event string, payload any) {
	for _, c := range h.members(room) {
		c.send(ctx, event, payload)
	}
}

// BroadcastExcept sends a plain event to everyone in the room but the sender.
func (h *Hub) BroadcastExcept(ctx context.Context, room string, sender *client, event string, payload any) {
	for _, c := range h.members(room) {
		if c.id == sender.id {
			continue
		}
		c.send(ctx, event, payload)
	}
}

// RegisterStream records the cancellation handle for a session's in-flight AI
// stream, superseding (and cancelling) any previous one. The returned handle
// must be passed back to ReleaseStream when the stream finishes.
func (h *Hub) RegisterStream(sessionID string, cancel context.CancelFunc) *streamHandle {
	handle := &streamHandle{cancel: cancel}
	h.streamMu.Lock()
	prev := h.streams[sessionID]
	h.streams[sessionID] = handle
	h.streamMu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	return handle
}

// ReleaseStream drops the stream handle without cancelling, once its stream
// has finished on its own. A handle that was already superseded is left
// alone, so a finished predecessor never discards its successor's handle.
func (h *Hub) ReleaseStream(sessionID string, handle *streamHandle) {
	h.streamMu.Lock()
	if h.streams[sessionID] == handle {
		delete(h.streams, sessionID)
	}
	h.streamMu.Unlock()
}

// CancelStream aborts the session's in-flight AI stream, if any.
func (h *Hub) CancelStream(sessionID string) {
	h.streamMu.Lock()
	handle := h.streams[sessionID]
	delete(h.streams, sessionID)
	h.streamMu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

// Screenshots exposes the per-session screenshot cache.
func (h *Hub) Screenshots() *ScreenshotCache { return h.screenshots }

// PendingCode exposes the per-session pending CODE request cache.
func (h *Hub) PendingCode() *PendingCodeCache { return h.pendingCode }

// ReleaseSession drops all process-local state tied to a session: buffered
// screenshots, pending CODE requests and any in-flight stream.
func (h *Hub) ReleaseSession(sessionID string) {
	h.screenshots.Clear(sessionID)
	h.pendingCode.Clear(sessionID)
	h.CancelStream(sessionID)
}
