package ws

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/models"
)

// meetingRoomName namespaces meeting rooms away from copilot session rooms.
func meetingRoomName(meetingID string) string {
	return "meeting:" + meetingID
}

// joinedMeeting verifies the connection joined the meeting it claims to act
// on.
func (h *Handler) joinedMeeting(c *client, claimed string) (string, bool) {
	m := c.meetingRoom()
	if m == nil {
		return "", false
	}
	if claimed != "" && claimed != m.meetingID {
		return "", false
	}
	return m.meetingID, true
}

func (h *Handler) handleJoinMeeting(ctx context.Context, c *client, p JoinMeetingPayload) {
	if c.userID == "" {
		c.sendMeetingError(ctx, "Unauthorized")
		return
	}

	meeting, err := h.meetings.GetByID(ctx, p.MeetingID)
	if err != nil {
		c.sendMeetingError(ctx, "Meeting not found or invalid key")
		return
	}
	if !strings.EqualFold(meeting.MeetingKey, strings.TrimSpace(p.MeetingKey)) {
		c.sendMeetingError(ctx, "Meeting not found or invalid key")
		return
	}
	if meeting.Status == models.MeetingStatusCompleted {
		c.sendMeetingError(ctx, "Meeting already completed")
		return
	}
	if meeting.Status == models.MeetingStatusExpired {
		c.sendMeetingError(ctx, "Meeting expired")
		return
	}
	if meeting.ExpiresAt != nil && time.Now().After(*meeting.ExpiresAt) && meeting.Status != models.MeetingStatusInProgress {
		c.sendMeetingError(ctx, "Meeting expired")
		return
	}

	now := time.Now()
	role := "attendee"
	status := meeting.Status
	if meeting.MentorID == c.userID {
		role = "mentor"
		status, err = h.meetings.MarkMentorJoined(ctx, meeting.ID, now)
		if err != nil {
			c.sendMeetingError(ctx, "Failed to join meeting")
			return
		}
	} else {
		// First non-mentor claims the attendee slot; afterwards only that
		// identity may rejoin.
		if err := h.meetings.ClaimAttendee(ctx, meeting.ID, c.userID, now); err != nil {
			if err == models.ErrAttendeeSlotTaken {
				c.sendMeetingError(ctx, "This key is already used by another user")
				return
			}
			c.sendMeetingError(ctx, "Failed to join meeting")
			return
		}
	}

	c.setMeeting(&meetingMembership{meetingID: meeting.ID, role: role})
	h.hub.Join(meetingRoomName(meeting.ID), c)

	c.send(ctx, EventMeetingJoined, map[string]any{
		"meetingId":  meeting.ID,
		"role":       role,
		"technology": meeting.Technology,
	})
	c.send(ctx, EventMeetingStatus, map[string]string{"status": string(status)})

	log.WithFields(log.Fields{
		"meeting_id": meeting.ID,
		"user_id":    c.userID,
		"role":       role,
	}).Info("Joined meeting")
}

func (h *Handler) handleMeetingTranscriptChunk(ctx context.Context, c *client, p MeetingTranscriptPayload) {
	mid, ok := h.joinedMeeting(c, p.MeetingID)
	if !ok {
		c.sendMeetingError(ctx, "Join the meeting first")
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return
	}

	h.transcripts.Append(mid, text)
	h.hub.BroadcastExcept(ctx, meetingRoomName(mid), c, EventMeetingTranscriptChunk, map[string]string{
		"meetingId": mid,
		"text":      text,
		"from":      p.From,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleMeetingTranscriptInterim relays in-progress speech fragments to the
// other side without persisting them.
func (h *Handler) handleMeetingTranscriptInterim(ctx context.Context, c *client, p MeetingTranscriptPayload) {
	mid, ok := h.joinedMeeting(c, p.MeetingID)
	if !ok {
		c.sendMeetingError(ctx, "Join the meeting first")
		return
	}
	h.hub.BroadcastExcept(ctx, meetingRoomName(mid), c, EventMeetingTranscriptInterim, map[string]string{
		"meetingId": mid,
		"text":      p.Text,
		"timestamp": p.Timestamp,
		"from":      p.From,
	})
}

func (h *Handler) handleMeetingStatusUpdate(ctx context.Context, c *client, p MeetingStatusUpdatePayload) {
	mid, ok := h.joinedMeeting(c, p.MeetingID)
	if !ok {
		c.sendMeetingError(ctx, "Join the meeting first")
		return
	}
	if !models.ValidMeetingStatus(p.Status) {
		c.sendMeetingError(ctx, "Invalid status")
		return
	}

	if err := h.meetings.UpdateStatus(ctx, mid, models.MeetingStatus(p.Status)); err != nil {
		log.WithError(err).WithField("meeting_id", mid).Error("Failed to update meeting status")
		c.sendMeetingError(ctx, "Failed to update status")
		return
	}
	h.hub.Broadcast(ctx, meetingRoomName(mid), EventMeetingStatus, map[string]string{"status": p.Status})
}

func (h *Handler) handleMeetingEnd(ctx context.Context, c *client, p MeetingRefPayload) {
	mid, ok := h.joinedMeeting(c, p.MeetingID)
	if !ok {
		c.sendMeetingError(ctx, "Join the meeting first")
		return
	}

	// Flush buffered transcript and mark completed in the same write.
	h.transcripts.FlushNow(mid, models.MeetingStatusCompleted)

	h.hub.Broadcast(ctx, meetingRoomName(mid), EventMeetingStatus,
		map[string]string{"status": string(models.MeetingStatusCompleted)})
	h.hub.Broadcast(ctx, meetingRoomName(mid), EventMeetingEnd,
		map[string]string{"meetingId": mid})

	log.WithField("meeting_id", mid).Info("Meeting ended")
}
