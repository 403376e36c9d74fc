package service

import (
	"encoding/json"
	"strings"

	"interview-copilot-service/src/models"
)

// maxSummaryTopics caps the topic list in a generated recap.
const maxSummaryTopics = 20

// SessionSummary is the structured recap extracted from a model answer.
type SessionSummary struct {
	Overview  string   `json:"overview"`
	Topics    []string `json:"topics,omitempty"`
	KeyPoints []string `json:"keyPoints,omitempty"`
	NextSteps []string `json:"nextSteps,omitempty"`
}

// ParseSummaryAnswer extracts a structured summary from a model answer. The
// model is asked for JSON but may wrap it in prose or a code fence; when no
// parseable JSON object is found the whole answer becomes the overview text.
func ParseSummaryAnswer(answer string) SessionSummary {
	raw := extractJSONObject(answer)
	if raw != "" {
		var summary SessionSummary
		if err := json.Unmarshal([]byte(raw), &summary); err == nil && summary.Overview != "" {
			if len(summary.Topics) > maxSummaryTopics {
				summary.Topics = summary.Topics[:maxSummaryTopics]
			}
			return summary
		}
	}
	return SessionSummary{Overview: strings.TrimSpace(answer)}
}

// extractJSONObject returns the first top-level {...} block in s, honoring
// nesting and strings, or "" when none exists.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// BuildSummaryPrompt assembles the completion request that produces a session
// recap from the stored transcript and topics.
func BuildSummaryPrompt(session *models.CopilotSession) []string {
	var transcript strings.Builder
	for _, entry := range session.Transcript {
		transcript.WriteString(entry.Text)
		transcript.WriteString("\n")
	}

	var b strings.Builder
	b.WriteString("Summarize the following conversation transcript. ")
	b.WriteString("Respond with a JSON object: ")
	b.WriteString(`{"overview": string, "topics": [string], "keyPoints": [string], "nextSteps": [string]}.`)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript.String())
	if len(session.Topics) > 0 {
		b.WriteString("\nDetected topics:\n")
		for _, t := range session.Topics {
			b.WriteString("- " + t.Text + "\n")
		}
	}
	return []string{
		"You are an assistant that writes concise meeting recaps.",
		b.String(),
	}
}
