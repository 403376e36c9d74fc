package models

import "time"

// MeetingStatus represents the scheduling lifecycle of a mentor meeting.
type MeetingStatus string

const (
	MeetingStatusScheduled  MeetingStatus = "SCHEDULED"
	MeetingStatusPending    MeetingStatus = "PENDING"
	MeetingStatusApproved   MeetingStatus = "APPROVED"
	MeetingStatusRejected   MeetingStatus = "REJECTED"
	MeetingStatusInProgress MeetingStatus = "IN_PROGRESS"
	MeetingStatusCompleted  MeetingStatus = "COMPLETED"
	MeetingStatusExpired    MeetingStatus = "EXPIRED"
)

func (s MeetingStatus) Terminal() bool {
	return s == MeetingStatusCompleted || s == MeetingStatusExpired || s == MeetingStatusRejected
}

// ValidMeetingStatus reports whether a client-supplied status string is a
// known meeting status.
func ValidMeetingStatus(s string) bool {
	switch MeetingStatus(s) {
	case MeetingStatusScheduled, MeetingStatusPending, MeetingStatusApproved,
		MeetingStatusRejected, MeetingStatusInProgress, MeetingStatusCompleted,
		MeetingStatusExpired:
		return true
	}
	return false
}

// Meeting is a scheduled mentor/attendee session. The first non-host user who
// joins via the meeting key becomes the attendee and locks the slot.
type Meeting struct {
	ID         string `json:"id"`
	MentorID   string `json:"mentorId"`
	Technology string `json:"technology"`

	AttendeeID   string `json:"attendeeId,omitempty"`
	AttendeeName string `json:"attendeeName,omitempty"`

	ScheduledAt     time.Time  `json:"scheduledAt"`
	DurationMinutes int        `json:"durationMinutes"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`

	MeetingKey string        `json:"meetingKey"`
	Status     MeetingStatus `json:"status"`

	MentorJoinedAt   *time.Time `json:"mentorJoinedAt,omitempty"`
	AttendeeJoinedAt *time.Time `json:"attendeeJoinedAt,omitempty"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	SessionEndedAt   *time.Time `json:"sessionEndedAt,omitempty"`

	CreditCharged  bool `json:"creditCharged"`
	CreditRefunded bool `json:"creditRefunded"`

	TotalSessionSeconds int `json:"totalSessionSeconds"`
	BilledSeconds       int `json:"billedSeconds"`

	Transcript string `json:"transcript"`

	SummaryText      string     `json:"summaryText,omitempty"`
	SummaryTopics    []string   `json:"summaryTopics,omitempty"`
	SummaryUpdatedAt *time.Time `json:"summaryUpdatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
