package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/ai"
	"interview-copilot-service/src/models"
	"interview-copilot-service/src/service"
)

// Request kinds carried on ai_request events.
const (
	requestTypeHelpMe = "HELP_ME"
	requestTypeCode   = "CODE"
	requestTypeScreen = "SCREEN"
)

// Prompt context clamps, to keep enrichment from blowing the request size.
const (
	maxContextKeywords   = 50
	maxContextDocChars   = 6000
	maxContextNotesChars = 2000
)

// joinedCopilotSession verifies the connection joined the copilot room it
// claims to act on. Acting on a room without joining it first is rejected.
func (h *Handler) joinedCopilotSession(c *client, claimed string) (string, bool) {
	m := c.copilotRoom()
	if m == nil {
		return "", false
	}
	if claimed != "" && claimed != m.sessionID {
		return "", false
	}
	return m.sessionID, true
}

func (h *Handler) handleCopilotJoin(ctx context.Context, c *client, p JoinPayload) {
	if c.userID == "" {
		c.sendCopilotError(ctx, "Unauthorized")
		return
	}

	session, err := h.sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		c.sendCopilotError(ctx, "Session not found")
		return
	}

	isOwner := session.OwnerUserID == c.userID
	if !isOwner {
		if err := service.ValidateJoinCode(session, p.JoinCode); err != nil {
			c.sendCopilotError(ctx, "Invalid join code")
			return
		}
	}

	deviceType := p.DeviceType
	if deviceType == "" {
		deviceType = "unknown"
	}
	c.setCopilot(&copilotMembership{sessionID: session.ID, isOwner: isOwner, deviceType: deviceType})
	h.hub.Join(session.ID, c)

	// Replace-on-reconnect: drop any prior entry for this connection, append,
	// keep the most recent entries only.
	now := time.Now()
	devices := make([]models.ConnectedDevice, 0, len(session.ConnectedDevices)+1)
	for _, d := range session.ConnectedDevices {
		if d.ConnectionID != c.id {
			devices = append(devices, d)
		}
	}
	devices = append(devices, models.ConnectedDevice{
		DeviceType:   deviceType,
		ConnectionID: c.id,
		LastSeenAt:   now,
	})
	if len(devices) > maxConnectedDevices {
		devices = devices[len(devices)-maxConnectedDevices:]
	}
	count, err := h.sessions.ReplaceDevices(ctx, session.ID, devices)
	if err != nil {
		c.sendCopilotError(ctx, "Failed to join session")
		return
	}

	joined := map[string]any{
		"sessionId":    session.ID,
		"status":       session.Status,
		"title":        session.Title,
		"scenarioType": session.Scenario,
		"targetUrl":    session.TargetURL,
		"isOwner":      isOwner,
	}
	if isOwner && session.JoinCode != "" {
		joined["joinCode"] = session.JoinCode
	}
	c.sendCopilot(ctx, KindCopilotJoined, joined)

	c.sendCopilot(ctx, KindCopilotState, map[string]any{
		"transcript": session.Transcript,
		"topics":     session.Topics,
		"aiMessages": session.AIMessages,
	})

	if deviceType == deviceTypeConsole {
		if images := h.hub.Screenshots().Get(session.ID); len(images) > 0 {
			c.sendCopilot(ctx, KindCopilotCaptureState, map[string]any{"images": images})
		}
	}

	h.hub.BroadcastCopilot(ctx, session.ID, KindCopilotPresence, map[string]int{"count": count})

	log.WithFields(log.Fields{
		"session_id":  session.ID,
		"user_id":     c.userID,
		"device_type": deviceType,
		"is_owner":    isOwner,
	}).Info("Joined copilot session")
}

// maxConnectedDevices caps the persisted device list per session.
const maxConnectedDevices = 20

func (h *Handler) handleCopilotTranscriptChunk(ctx context.Context, c *client, p TranscriptChunkPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}

	text := strings.TrimSpace(p.Text)
	source := p.Source
	if source == "" {
		source = "extension"
	}
	entry := models.TranscriptEntry{Text: text, TS: time.Now(), Source: source}
	if err := h.sessions.AppendTranscript(ctx, sid, entry); err != nil {
		log.WithError(err).WithField("session_id", sid).Error("Failed to append transcript entry")
		return
	}
	h.hub.BroadcastCopilot(ctx, sid, KindCopilotTranscriptChunk, entry)
}

func (h *Handler) handleCopilotTopicEvent(ctx context.Context, c *client, p TopicEventPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}

	topic := models.TopicEvent{Text: strings.TrimSpace(p.Text), TS: time.Now()}
	if err := h.sessions.AppendTopic(ctx, sid, topic); err != nil {
		log.WithError(err).WithField("session_id", sid).Error("Failed to append topic event")
		return
	}
	h.hub.BroadcastCopilot(ctx, sid, KindCopilotTopicEvent, topic)
}

func (h *Handler) handleCopilotAIRequest(ctx context.Context, c *client, p AIRequestPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}

	requestType := p.Type
	if requestType == "" {
		requestType = requestTypeHelpMe
	}
	provider := p.Provider
	if requestType == requestTypeCode {
		// Code generation runs on the vision-capable provider.
		provider = string(ai.ProviderOpenAI)
	}

	h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIStatus,
		map[string]string{"status": "running", "type": requestType})

	messages := h.enrichMessages(ctx, sid, p.Messages)

	if requestType == requestTypeCode {
		pending := PendingCodeRequest{Provider: provider, Messages: messages}
		h.hub.PendingCode().Set(sid, pending)
		if images := h.hub.Screenshots().Get(sid); len(images) > 0 {
			h.runCodeFromScreenshots(ctx, sid, images, pending)
			return
		}
		h.hub.BroadcastCopilot(ctx, sid, KindCopilotCaptureRequested,
			map[string]string{"type": requestTypeCode})
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	handle := h.hub.RegisterStream(sid, cancel)
	defer h.hub.ReleaseStream(sid, handle)

	answer, err := h.completer.StreamCompletion(streamCtx, provider, messages, func(token string) {
		h.hub.BroadcastCopilotToClients(streamCtx, sid, KindCopilotAIToken, map[string]string{
			"type":  requestType,
			"token": token,
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	if err != nil {
		// A cancelled request was superseded or its room shut down. It must
		// go silent: no retry, no delivery, no persistence.
		if streamCtx.Err() != nil || errors.Is(err, context.Canceled) {
			log.WithField("session_id", sid).Debug("AI stream cancelled")
			return
		}
		// Streaming failure downgrades to a one-shot call before giving up.
		log.WithError(err).WithField("session_id", sid).Warn("AI stream failed, retrying non-streaming")
		answer, err = h.completer.Call(streamCtx, provider, messages)
		if err != nil {
			if streamCtx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIStatus, map[string]string{
				"status":  "error",
				"type":    requestType,
				"message": err.Error(),
			})
			return
		}
	}
	if streamCtx.Err() != nil {
		return
	}

	h.persistAndDeliverAnswer(ctx, sid, requestType, answer)
}

// enrichMessages prepends a system message carrying the session's stored
// context (resume, job description, keywords) so answers are tailored to it.
// Enrichment failures are non-fatal.
func (h *Handler) enrichMessages(ctx context.Context, sid string, messages []ai.Message) []ai.Message {
	session, err := h.sessions.GetByID(ctx, sid)
	if err != nil {
		return messages
	}
	meta := session.Metadata

	var blocks []string
	if len(meta.Keywords) > 0 {
		kw := meta.Keywords
		if len(kw) > maxContextKeywords {
			kw = kw[:maxContextKeywords]
		}
		blocks = append(blocks, "Keywords: "+strings.Join(kw, ", "))
	}
	if meta.JobDescriptionText != "" {
		blocks = append(blocks, "Job Description:\n"+clampText(meta.JobDescriptionText, maxContextDocChars))
	}
	if meta.ResumeText != "" {
		blocks = append(blocks, "Candidate Resume:\n"+clampText(meta.ResumeText, maxContextDocChars))
	}
	if meta.AdditionalInfo != "" {
		blocks = append(blocks, "Additional Context:\n"+clampText(meta.AdditionalInfo, maxContextNotesChars))
	}
	if len(blocks) == 0 {
		return messages
	}

	system := ai.Message{
		Role:    "system",
		Content: "Session context (use this to tailor answers):\n\n" + strings.Join(blocks, "\n\n"),
	}
	return append([]ai.Message{system}, messages...)
}

func clampText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[truncated]"
}

// runCodeFromScreenshots resolves a pending CODE request against the buffered
// screenshots: OCR the problem from the images and produce a full solution.
func (h *Handler) runCodeFromScreenshots(ctx context.Context, sid string, images []string, pending PendingCodeRequest) {
	prompt := ai.Message{
		Role: "user",
		Content: "Screenshots of a coding interview problem. Perform OCR on these images to extract " +
			"the problem statement and any starter code. Identify the intended programming language " +
			"and produce a complete, working solution in it. Return **Code** (one fenced code block) " +
			"and then **Explanation** (approach, key decisions, time/space complexity). " +
			"Use ONLY these images; ignore any stale or unrelated context.",
		Images: images,
	}
	messages := append(append([]ai.Message(nil), pending.Messages...), prompt)

	answer, err := h.completer.Call(ctx, pending.Provider, messages)
	h.hub.PendingCode().Clear(sid)
	if err != nil {
		log.WithError(err).WithField("session_id", sid).Error("Code generation failed")
		h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIStatus, map[string]string{
			"status":  "error",
			"type":    requestTypeCode,
			"message": err.Error(),
		})
		return
	}

	h.persistAndDeliverAnswer(ctx, sid, requestTypeCode, answer)
}

func (h *Handler) persistAndDeliverAnswer(ctx context.Context, sid, requestType, answer string) {
	now := time.Now()
	msg := models.AIMessage{Type: requestType, Role: "assistant", Content: answer, TS: now}
	if err := h.sessions.AppendAIMessage(ctx, sid, msg); err != nil {
		log.WithError(err).WithField("session_id", sid).Error("Failed to persist AI message")
	}
	h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIResponse, map[string]string{
		"type":    requestType,
		"content": answer,
		"ts":      now.UTC().Format(time.RFC3339Nano),
	})
	h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIStatus,
		map[string]string{"status": "done", "type": requestType})
}

func (h *Handler) handleCopilotEnd(ctx context.Context, c *client, p SessionRefPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}
	if m := c.copilotRoom(); m == nil || !m.isOwner {
		c.sendCopilotError(ctx, "Forbidden")
		return
	}

	session, err := h.sessions.GetByID(ctx, sid)
	if err != nil {
		c.sendCopilotError(ctx, "Session not found")
		return
	}

	if _, err := h.finalizer.Finalize(ctx, sid); err != nil {
		log.WithError(err).WithField("session_id", sid).Error("Failed to finalize session")
		c.sendCopilotError(ctx, "Failed to end session")
		return
	}

	h.hub.CancelStream(sid)
	h.maybeGenerateSummary(session)

	h.hub.BroadcastCopilot(ctx, sid, KindCopilotEnd, map[string]string{
		"sessionId": sid,
		"status":    string(models.CopilotStatusEnded),
	})
	h.hub.BroadcastCopilot(ctx, sid, KindCopilotPresence, map[string]int{"count": 0})
}

// maybeGenerateSummary produces a recap in the background for sessions ending
// without one. Best effort; failures only log.
func (h *Handler) maybeGenerateSummary(session *models.CopilotSession) {
	if session.SummaryUpdatedAt != nil || len(session.Transcript) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		prompts := service.BuildSummaryPrompt(session)
		answer, err := h.completer.Call(ctx, "", []ai.Message{
			{Role: "system", Content: prompts[0]},
			{Role: "user", Content: prompts[1]},
		})
		if err != nil {
			log.WithError(err).WithField("session_id", session.ID).Warn("Failed to auto-generate session summary")
			return
		}
		summary := service.ParseSummaryAnswer(answer)
		data, err := json.Marshal(summary)
		if err != nil {
			return
		}
		if err := h.sessions.SaveSummary(ctx, session.ID, summary.Overview, data, time.Now()); err != nil {
			log.WithError(err).WithField("session_id", session.ID).Warn("Failed to save session summary")
		}
	}()
}

func (h *Handler) handleCopilotCaptureUpload(ctx context.Context, c *client, p CaptureUploadPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}

	images := h.hub.Screenshots().Add(sid, p.Image)
	h.hub.BroadcastCopilotToConsoles(ctx, sid, KindCopilotCaptureSaved, map[string]any{
		"image": p.Image,
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"count": len(images),
	})

	if pending, ok := h.hub.PendingCode().Peek(sid); ok {
		h.runCodeFromScreenshots(ctx, sid, images, pending)
		return
	}

	captureType := p.Type
	if captureType == "" {
		captureType = requestTypeScreen
	}
	h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIResponse, map[string]string{
		"type":    captureType,
		"content": fmt.Sprintf("Screenshot saved (%d buffered). Take more or press Code to generate a solution.", len(images)),
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIStatus,
		map[string]string{"status": "done", "type": captureType})
}

func (h *Handler) handleCopilotScreenCapture(ctx context.Context, c *client, p SessionRefPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}
	h.hub.BroadcastCopilot(ctx, sid, KindCopilotCaptureRequested, map[string]string{"type": requestTypeScreen})
	h.hub.BroadcastCopilotToClients(ctx, sid, KindCopilotAIStatus,
		map[string]string{"status": "running", "type": requestTypeScreen})
}

func (h *Handler) handleCopilotClearScreens(ctx context.Context, c *client, p SessionRefPayload) {
	sid, ok := h.joinedCopilotSession(c, p.SessionID)
	if !ok {
		c.sendCopilotError(ctx, "Join the session first")
		return
	}
	h.hub.Screenshots().Clear(sid)
	h.hub.PendingCode().Clear(sid)
	h.hub.BroadcastCopilotToConsoles(ctx, sid, KindCopilotCaptureCleared,
		map[string]string{"ts": time.Now().UTC().Format(time.RFC3339Nano)})
}
