package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	"interview-copilot-service/src/ai"
)

// EventKind is the internal name of a realtime event. Copilot clients send
// the same events under two wire spellings ("copilot_join" and
// "copilot:join"); both map onto one kind here and outbound events use the
// underscore spelling.
type EventKind string

const (
	// Copilot inbound.
	KindCopilotJoin            EventKind = "join"
	KindCopilotTranscriptChunk EventKind = "transcript_chunk"
	KindCopilotTopicEvent      EventKind = "topic_event"
	KindCopilotAIRequest       EventKind = "ai_request"
	KindCopilotEnd             EventKind = "end"
	KindCopilotCaptureUpload   EventKind = "capture_upload"
	KindCopilotScreenCapture   EventKind = "screen_capture"
	KindCopilotClearScreens    EventKind = "clear_screens"

	// Copilot outbound.
	KindCopilotJoined           EventKind = "joined"
	KindCopilotState            EventKind = "state"
	KindCopilotPresence         EventKind = "presence"
	KindCopilotError            EventKind = "error"
	KindCopilotAIStatus         EventKind = "ai_status"
	KindCopilotAIToken          EventKind = "ai_token"
	KindCopilotAIResponse       EventKind = "ai_response"
	KindCopilotCaptureState     EventKind = "capture_state"
	KindCopilotCaptureSaved     EventKind = "capture_saved"
	KindCopilotCaptureRequested EventKind = "capture_requested"
	KindCopilotCaptureCleared   EventKind = "capture_cleared"
)

// Meeting events keep their flat wire names.
const (
	EventJoinMeeting              = "join_meeting"
	EventMeetingJoined            = "meeting_joined"
	EventMeetingError             = "meeting_error"
	EventMeetingStatus            = "meeting_status"
	EventMeetingStatusUpdate      = "meeting_status_update"
	EventMeetingTranscriptChunk   = "meeting_transcript_chunk"
	EventMeetingTranscriptInterim = "meeting_transcript_interim"
	EventMeetingEnd               = "meeting_end"
)

const (
	copilotPrefixUnderscore = "copilot_"
	copilotPrefixColon      = "copilot:"
)

// ParseCopilotEvent maps a wire event name onto an internal kind. It accepts
// both alias spellings and reports false for non-copilot events.
func ParseCopilotEvent(name string) (EventKind, bool) {
	var base string
	switch {
	case strings.HasPrefix(name, copilotPrefixUnderscore):
		base = strings.TrimPrefix(name, copilotPrefixUnderscore)
	case strings.HasPrefix(name, copilotPrefixColon):
		base = strings.TrimPrefix(name, copilotPrefixColon)
	default:
		return "", false
	}
	switch kind := EventKind(base); kind {
	case KindCopilotJoin, KindCopilotTranscriptChunk, KindCopilotTopicEvent,
		KindCopilotAIRequest, KindCopilotEnd, KindCopilotCaptureUpload,
		KindCopilotScreenCapture, KindCopilotClearScreens:
		return kind, true
	}
	return "", false
}

// CopilotWireName returns the outbound wire name for a copilot event kind.
func CopilotWireName(kind EventKind) string {
	return copilotPrefixUnderscore + string(kind)
}

// Envelope is the JSON frame exchanged over the websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// --- inbound payloads ---

type JoinPayload struct {
	SessionID  string `json:"sessionId"`
	JoinCode   string `json:"joinCode,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
}

func (p *JoinPayload) Validate() error {
	if strings.TrimSpace(p.SessionID) == "" {
		return fmt.Errorf("missing sessionId")
	}
	return nil
}

type TranscriptChunkPayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
}

func (p *TranscriptChunkPayload) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("missing text")
	}
	return nil
}

type TopicEventPayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

func (p *TopicEventPayload) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("missing text")
	}
	return nil
}

type AIRequestPayload struct {
	SessionID string       `json:"sessionId"`
	Provider  string       `json:"provider,omitempty"`
	Type      string       `json:"type,omitempty"`
	Messages  []ai.Message `json:"messages"`
}

func (p *AIRequestPayload) Validate() error {
	if p.Messages == nil {
		return fmt.Errorf("messages array required")
	}
	return nil
}

type SessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

type CaptureUploadPayload struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type,omitempty"`
	Image     string `json:"image"`
}

func (p *CaptureUploadPayload) Validate() error {
	if p.Image == "" {
		return fmt.Errorf("missing image")
	}
	return nil
}

type JoinMeetingPayload struct {
	MeetingID  string `json:"meetingId"`
	MeetingKey string `json:"meetingKey"`
}

func (p *JoinMeetingPayload) Validate() error {
	if strings.TrimSpace(p.MeetingID) == "" || strings.TrimSpace(p.MeetingKey) == "" {
		return fmt.Errorf("missing meeting reference")
	}
	return nil
}

type MeetingTranscriptPayload struct {
	MeetingID string `json:"meetingId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
	From      string `json:"from,omitempty"`
}

type MeetingStatusUpdatePayload struct {
	MeetingID string `json:"meetingId"`
	Status    string `json:"status"`
}

type MeetingRefPayload struct {
	MeetingID string `json:"meetingId"`
}
