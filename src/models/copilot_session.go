package models

import (
	"strings"
	"time"
)

// CopilotSessionStatus represents the lifecycle state of an ad-hoc copilot session.
type CopilotSessionStatus string

const (
	CopilotStatusDraft  CopilotSessionStatus = "DRAFT"
	CopilotStatusActive CopilotSessionStatus = "ACTIVE"
	CopilotStatusEnded  CopilotSessionStatus = "ENDED"
)

// Terminal reports whether no further lifecycle transitions are allowed.
func (s CopilotSessionStatus) Terminal() bool {
	return s == CopilotStatusEnded
}

// ScenarioType classifies what kind of conversation the copilot assists with.
type ScenarioType string

const (
	ScenarioJobInterview ScenarioType = "JOB_INTERVIEW"
	ScenarioTeamMeeting  ScenarioType = "TEAM_MEETING"
	ScenarioClientCall   ScenarioType = "CLIENT_CALL"
	ScenarioConsulting   ScenarioType = "CONSULTING"
	ScenarioOther        ScenarioType = "OTHER"
)

// NormalizeScenarioType maps free-form client input, including legacy aliases,
// onto the canonical enum. Unknown values become OTHER.
func NormalizeScenarioType(v string) ScenarioType {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "JOB_INTERVIEW", "HR_INTERVIEW":
		return ScenarioJobInterview
	case "TEAM_MEETING":
		return ScenarioTeamMeeting
	case "CLIENT_CALL", "CLIENT_MEETING":
		return ScenarioClientCall
	case "CONSULTING":
		return ScenarioConsulting
	}
	return ScenarioOther
}

// TranscriptEntry is one buffered or persisted transcript fragment.
type TranscriptEntry struct {
	Text   string    `json:"text"`
	TS     time.Time `json:"ts"`
	Source string    `json:"source"`
}

// TopicEvent is a detected discussion topic marker.
type TopicEvent struct {
	Text string    `json:"text"`
	TS   time.Time `json:"ts"`
}

// AIMessage is a persisted AI exchange entry (request kinds: HELP_ME, CODE, SUMMARY, ...).
type AIMessage struct {
	Type    string    `json:"type"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
}

// ConnectedDevice records one live connection attached to a session room.
type ConnectedDevice struct {
	DeviceType   string    `json:"deviceType"`
	ConnectionID string    `json:"connectionId"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// SessionMetadata carries optional per-session context used to steer AI answers.
type SessionMetadata struct {
	AdditionalInfo     string   `json:"additionalInfo,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
	ResumeText         string   `json:"resumeText,omitempty"`
	JobDescriptionText string   `json:"jobDescriptionText,omitempty"`

	// Optional linkage to a scheduled interview record.
	InterviewID string `json:"interviewId,omitempty"`

	CompanyName     string `json:"companyName,omitempty"`
	JobTitle        string `json:"jobTitle,omitempty"`
	ExperienceYears int    `json:"experienceYears,omitempty"`
	ResponseStyle   string `json:"responseStyle,omitempty"`
}

// CopilotSession is an ad-hoc assisted session driven by multiple paired
// clients: a browser-extension overlay on the call tab, and a web/mobile
// console acting as second control surface.
type CopilotSession struct {
	ID          string               `json:"id"`
	OwnerUserID string               `json:"ownerUserId"`
	Title       string               `json:"title"`
	Scenario    ScenarioType         `json:"scenarioType"`
	TargetURL   string               `json:"targetUrl"`
	Status      CopilotSessionStatus `json:"status"`
	JoinCode    string               `json:"joinCode,omitempty"`
	Metadata    SessionMetadata      `json:"metadata"`

	Transcript []TranscriptEntry `json:"transcript"`
	Topics     []TopicEvent      `json:"topics"`
	AIMessages []AIMessage       `json:"aiMessages"`

	SessionStartedAt    *time.Time `json:"sessionStartedAt,omitempty"`
	SessionEndedAt      *time.Time `json:"sessionEndedAt,omitempty"`
	TotalSessionSeconds int        `json:"totalSessionSeconds"`
	BilledSeconds       int        `json:"billedSeconds"`
	CreditCharged       bool       `json:"creditCharged"`

	SummaryText      string     `json:"summaryText,omitempty"`
	SummaryData      []byte     `json:"summaryData,omitempty"`
	SummaryUpdatedAt *time.Time `json:"summaryUpdatedAt,omitempty"`

	ConnectedDevices []ConnectedDevice `json:"connectedDevices"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
