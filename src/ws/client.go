package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	log "github.com/sirupsen/logrus"
)

// socket is the subset of *websocket.Conn the hub writes through, extracted
// so tests can substitute an in-memory fake.
type socket interface {
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// copilotMembership records a connection's join into a copilot session room.
type copilotMembership struct {
	sessionID  string
	isOwner    bool
	deviceType string
}

// meetingMembership records a connection's join into a meeting room.
type meetingMembership struct {
	meetingID string
	role      string
}

// client is one live websocket connection with its authenticated identity and
// room memberships. Writes are serialized per connection.
type client struct {
	id     string
	userID string
	sock   socket

	mu      sync.Mutex
	copilot *copilotMembership
	meeting *meetingMembership
	writeMu sync.Mutex
}

func newClient(id, userID string, sock socket) *client {
	return &client{id: id, userID: userID, sock: sock}
}

func (c *client) setCopilot(m *copilotMembership) {
	c.mu.Lock()
	c.copilot = m
	c.mu.Unlock()
}

func (c *client) copilotRoom() *copilotMembership {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copilot
}

func (c *client) setMeeting(m *meetingMembership) {
	c.mu.Lock()
	c.meeting = m
	c.mu.Unlock()
}

func (c *client) meetingRoom() *meetingMembership {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meeting
}

// send writes one event frame to this connection. Send failures are logged
// and otherwise ignored; the read loop notices the dead connection.
func (c *client) send(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("event", event).Error("Failed to encode event payload")
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.WithError(err).WithField("event", event).Error("Failed to encode event frame")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.Write(ctx, websocket.MessageText, frame); err != nil {
		log.WithError(err).WithFields(log.Fields{"event": event, "connection_id": c.id}).
			Debug("Failed to write event")
	}
}

// sendCopilot writes a copilot event using its outbound wire name.
func (c *client) sendCopilot(ctx context.Context, kind EventKind, payload any) {
	c.send(ctx, CopilotWireName(kind), payload)
}

func (c *client) sendCopilotError(ctx context.Context, message string) {
	c.sendCopilot(ctx, KindCopilotError, map[string]string{"message": message})
}

func (c *client) sendMeetingError(ctx context.Context, message string) {
	c.send(ctx, EventMeetingError, map[string]string{"message": message})
}
