package models

import "time"

// InterviewStatus represents the scheduling lifecycle of an AI interview slot.
type InterviewStatus string

const (
	InterviewStatusScheduled  InterviewStatus = "SCHEDULED"
	InterviewStatusPending    InterviewStatus = "PENDING"
	InterviewStatusApproved   InterviewStatus = "APPROVED"
	InterviewStatusRejected   InterviewStatus = "REJECTED"
	InterviewStatusInProgress InterviewStatus = "IN_PROGRESS"
	InterviewStatusCompleted  InterviewStatus = "COMPLETED"
	InterviewStatusExpired    InterviewStatus = "EXPIRED"
	InterviewStatusCancelled  InterviewStatus = "CANCELLED"
)

func (s InterviewStatus) Terminal() bool {
	return s == InterviewStatusCompleted || s == InterviewStatusExpired ||
		s == InterviewStatusRejected || s == InterviewStatusCancelled
}

// Interview is a scheduled AI interview slot. Ad-hoc copilot sessions may be
// linked to one; any usage through the linked session marks the interview as
// used so it is never reported as expired.
type Interview struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`

	JobDescription string   `json:"jobDescription,omitempty"`
	ResumeText     string   `json:"resumeText,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	AdditionalInfo string   `json:"additionalInfo,omitempty"`

	ScheduledAt     time.Time  `json:"scheduledAt"`
	DurationMinutes int        `json:"durationMinutes"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`

	Status InterviewStatus `json:"status"`

	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	SessionEndedAt   *time.Time `json:"sessionEndedAt,omitempty"`

	CreditCharged  bool `json:"creditCharged"`
	CreditRefunded bool `json:"creditRefunded"`

	TotalSessionSeconds int `json:"totalSessionSeconds"`
	BilledSeconds       int `json:"billedSeconds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
