package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/ai"
	"interview-copilot-service/src/models"
	"interview-copilot-service/src/service"
)

// SessionStore is the copilot session persistence the realtime layer uses.
type SessionStore interface {
	GetByID(ctx context.Context, sessionID string) (*models.CopilotSession, error)
	AppendTranscript(ctx context.Context, sessionID string, entry models.TranscriptEntry) error
	AppendTopic(ctx context.Context, sessionID string, topic models.TopicEvent) error
	AppendAIMessage(ctx context.Context, sessionID string, msg models.AIMessage) error
	ReplaceDevices(ctx context.Context, sessionID string, devices []models.ConnectedDevice) (int, error)
	RemoveDevice(ctx context.Context, sessionID, connectionID string) (int, error)
	SaveSummary(ctx context.Context, sessionID, summaryText string, summaryData []byte, updatedAt time.Time) error
}

// MeetingStore is the meeting persistence the realtime layer uses.
type MeetingStore interface {
	GetByID(ctx context.Context, meetingID string) (*models.Meeting, error)
	MarkMentorJoined(ctx context.Context, meetingID string, now time.Time) (models.MeetingStatus, error)
	ClaimAttendee(ctx context.Context, meetingID, userID string, now time.Time) error
	UpdateStatus(ctx context.Context, meetingID string, status models.MeetingStatus) error
}

// Completer performs AI completions, streaming and not.
type Completer interface {
	StreamCompletion(ctx context.Context, provider string, messages []ai.Message, onToken func(string)) (string, error)
	Call(ctx context.Context, provider string, messages []ai.Message) (string, error)
}

// SessionFinalizer settles a session's billing on termination.
type SessionFinalizer interface {
	Finalize(ctx context.Context, sessionID string) (*service.FinalizeResult, error)
}

// TranscriptSink buffers meeting transcript chunks for delayed persistence.
type TranscriptSink interface {
	Append(meetingID, line string)
	FlushNow(meetingID string, forceStatus models.MeetingStatus)
}

// Verifier authenticates a connection token into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// Handler upgrades HTTP requests to websocket connections and runs their
// event loops.
type Handler struct {
	hub         *Hub
	verifier    Verifier
	sessions    SessionStore
	meetings    MeetingStore
	completer   Completer
	finalizer   SessionFinalizer
	transcripts TranscriptSink

	insecureSkipVerify bool
}

func NewHandler(
	hub *Hub,
	verifier Verifier,
	sessions SessionStore,
	meetings MeetingStore,
	completer Completer,
	finalizer SessionFinalizer,
	transcripts TranscriptSink,
	insecureSkipVerify bool,
) *Handler {
	return &Handler{
		hub:                hub,
		verifier:           verifier,
		sessions:           sessions,
		meetings:           meetings,
		completer:          completer,
		finalizer:          finalizer,
		transcripts:        transcripts,
		insecureSkipVerify: insecureSkipVerify,
	}
}

// ServeHTTP authenticates and upgrades the connection, then serves its events
// until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.insecureSkipVerify,
	})
	if err != nil {
		log.WithError(err).Error("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Frames can carry data-URL screenshots.
	conn.SetReadLimit(16 * 1024 * 1024)

	c := newClient(uuid.New().String(), identity.UserID, conn)
	log.WithFields(log.Fields{"connection_id": c.id, "user_id": c.userID}).Info("Websocket connected")

	h.serve(r.Context(), c)
}

func (h *Handler) serve(ctx context.Context, c *client) {
	defer h.handleDisconnect(c)

	conn, ok := c.sock.(*websocket.Conn)
	if !ok {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.WithField("connection_id", c.id).Debug("Websocket closed")
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendCopilotError(ctx, "Invalid message format")
			continue
		}
		h.dispatch(ctx, c, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *client, env Envelope) {
	if kind, ok := ParseCopilotEvent(env.Event); ok {
		h.dispatchCopilot(ctx, c, kind, env.Data)
		return
	}

	switch env.Event {
	case EventJoinMeeting:
		var p JoinMeetingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Validate() != nil {
			c.sendMeetingError(ctx, "Missing meeting reference")
			return
		}
		h.handleJoinMeeting(ctx, c, p)
	case EventMeetingTranscriptChunk:
		var p MeetingTranscriptPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendMeetingError(ctx, "Invalid message format")
			return
		}
		h.handleMeetingTranscriptChunk(ctx, c, p)
	case EventMeetingTranscriptInterim:
		var p MeetingTranscriptPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendMeetingError(ctx, "Invalid message format")
			return
		}
		h.handleMeetingTranscriptInterim(ctx, c, p)
	case EventMeetingStatusUpdate:
		var p MeetingStatusUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendMeetingError(ctx, "Invalid message format")
			return
		}
		h.handleMeetingStatusUpdate(ctx, c, p)
	case EventMeetingEnd:
		var p MeetingRefPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendMeetingError(ctx, "Invalid message format")
			return
		}
		h.handleMeetingEnd(ctx, c, p)
	default:
		log.WithField("event", env.Event).Debug("Unknown event")
	}
}

func (h *Handler) dispatchCopilot(ctx context.Context, c *client, kind EventKind, data json.RawMessage) {
	switch kind {
	case KindCopilotJoin:
		var p JoinPayload
		if err := json.Unmarshal(data, &p); err != nil {
			c.sendCopilotError(ctx, "Invalid message format")
			return
		}
		if err := p.Validate(); err != nil {
			c.sendCopilotError(ctx, "Missing sessionId")
			return
		}
		h.handleCopilotJoin(ctx, c, p)
	case KindCopilotTranscriptChunk:
		var p TranscriptChunkPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Validate() != nil {
			return
		}
		h.handleCopilotTranscriptChunk(ctx, c, p)
	case KindCopilotTopicEvent:
		var p TopicEventPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Validate() != nil {
			return
		}
		h.handleCopilotTopicEvent(ctx, c, p)
	case KindCopilotAIRequest:
		var p AIRequestPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Validate() != nil {
			return
		}
		// Off the read loop, so frames arriving while the answer streams
		// (another request, an end) are still read and can supersede it.
		go h.handleCopilotAIRequest(ctx, c, p)
	case KindCopilotEnd:
		var p SessionRefPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.handleCopilotEnd(ctx, c, p)
	case KindCopilotCaptureUpload:
		var p CaptureUploadPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Validate() != nil {
			return
		}
		h.handleCopilotCaptureUpload(ctx, c, p)
	case KindCopilotScreenCapture:
		var p SessionRefPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.handleCopilotScreenCapture(ctx, c, p)
	case KindCopilotClearScreens:
		var p SessionRefPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		h.handleCopilotClearScreens(ctx, c, p)
	}
}

// handleDisconnect tears down room membership and releases per-session state
// held on behalf of the departing connection. The owning connection dropping
// ends the session.
func (h *Handler) handleDisconnect(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m := c.copilotRoom(); m != nil {
		remaining := h.hub.Leave(m.sessionID, c)

		count := 0
		if n, err := h.sessions.RemoveDevice(ctx, m.sessionID, c.id); err == nil {
			count = n
		}

		if m.isOwner {
			h.finalizeOnOwnerDisconnect(ctx, m.sessionID, remaining)
		}

		if remaining > 0 {
			h.hub.BroadcastCopilot(ctx, m.sessionID, KindCopilotPresence, map[string]int{"count": count})
		} else {
			// Caches and any in-flight stream live as long as the room does; a
			// bystander leaving must not kill an answer still streaming to
			// the members that stayed.
			h.hub.ReleaseSession(m.sessionID)
		}
	}

	if m := c.meetingRoom(); m != nil {
		h.hub.Leave(meetingRoomName(m.meetingID), c)
	}
}

// finalizeOnOwnerDisconnect settles an active session whose owner dropped.
// Finalize is idempotent, so racing an explicit end is harmless.
func (h *Handler) finalizeOnOwnerDisconnect(ctx context.Context, sid string, remaining int) {
	session, err := h.sessions.GetByID(ctx, sid)
	if err != nil || session.Status != models.CopilotStatusActive {
		return
	}

	if _, err := h.finalizer.Finalize(ctx, sid); err != nil {
		log.WithError(err).WithField("session_id", sid).Error("Failed to finalize session on owner disconnect")
		return
	}
	h.hub.ReleaseSession(sid)
	h.maybeGenerateSummary(session)

	if remaining > 0 {
		h.hub.BroadcastCopilot(ctx, sid, KindCopilotEnd, map[string]string{
			"sessionId": sid,
			"status":    string(models.CopilotStatusEnded),
		})
	}
	log.WithField("session_id", sid).Info("Session finalized on owner disconnect")
}
