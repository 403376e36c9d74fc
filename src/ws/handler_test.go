package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"interview-copilot-service/src/ai"
	"interview-copilot-service/src/models"
	"interview-copilot-service/src/service"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.CopilotSession
	aiMsgs   []models.AIMessage
}

func (s *fakeSessionStore) GetByID(ctx context.Context, id string) (*models.CopilotSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *fakeSessionStore) AppendTranscript(ctx context.Context, id string, entry models.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	session.Transcript = append(session.Transcript, entry)
	return nil
}

func (s *fakeSessionStore) AppendTopic(ctx context.Context, id string, topic models.TopicEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	session.Topics = append(session.Topics, topic)
	return nil
}

func (s *fakeSessionStore) AppendAIMessage(ctx context.Context, id string, msg models.AIMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiMsgs = append(s.aiMsgs, msg)
	return nil
}

func (s *fakeSessionStore) ReplaceDevices(ctx context.Context, id string, devices []models.ConnectedDevice) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return 0, models.ErrSessionNotFound
	}
	session.ConnectedDevices = devices
	return len(devices), nil
}

func (s *fakeSessionStore) RemoveDevice(ctx context.Context, id, connectionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return 0, models.ErrSessionNotFound
	}
	kept := session.ConnectedDevices[:0]
	for _, d := range session.ConnectedDevices {
		if d.ConnectionID != connectionID {
			kept = append(kept, d)
		}
	}
	session.ConnectedDevices = kept
	return len(kept), nil
}

func (s *fakeSessionStore) SaveSummary(ctx context.Context, id, summaryText string, summaryData []byte, updatedAt time.Time) error {
	return nil
}

type fakeMeetingStore struct {
	mu       sync.Mutex
	meetings map[string]*models.Meeting
}

func (s *fakeMeetingStore) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return nil, models.ErrMeetingNotFound
	}
	copied := *meeting
	return &copied, nil
}

func (s *fakeMeetingStore) MarkMentorJoined(ctx context.Context, id string, now time.Time) (models.MeetingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting := s.meetings[id]
	if meeting.MentorJoinedAt == nil {
		meeting.MentorJoinedAt = &now
	}
	if !meeting.Status.Terminal() {
		meeting.Status = models.MeetingStatusInProgress
	}
	return meeting.Status, nil
}

func (s *fakeMeetingStore) ClaimAttendee(ctx context.Context, id, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting := s.meetings[id]
	if meeting.AttendeeID != "" && meeting.AttendeeID != userID {
		return models.ErrAttendeeSlotTaken
	}
	meeting.AttendeeID = userID
	if meeting.AttendeeJoinedAt == nil {
		meeting.AttendeeJoinedAt = &now
	}
	return nil
}

func (s *fakeMeetingStore) UpdateStatus(ctx context.Context, id string, status models.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[id].Status = status
	return nil
}

type fakeCompleter struct {
	mu          sync.Mutex
	answer      string
	streamErr   error
	calls       int
	streamCalls int

	// When set, the first StreamCompletion call signals streamStarted and
	// blocks until its context is cancelled. Later calls stream normally.
	blockFirstStream bool
	streamStarted    chan struct{}
}

func (f *fakeCompleter) StreamCompletion(ctx context.Context, provider string, messages []ai.Message, onToken func(string)) (string, error) {
	f.mu.Lock()
	f.streamCalls++
	blocked := f.blockFirstStream && f.streamCalls == 1
	streamErr := f.streamErr
	answer := f.answer
	f.mu.Unlock()

	if blocked {
		if f.streamStarted != nil {
			f.streamStarted <- struct{}{}
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	if streamErr != nil {
		return "", streamErr
	}
	for _, tok := range strings.SplitAfter(answer, " ") {
		if onToken != nil {
			onToken(tok)
		}
	}
	return answer, nil
}

func (f *fakeCompleter) Call(ctx context.Context, provider string, messages []ai.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.answer, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFinalizer struct {
	finalized []string
}

func (f *fakeFinalizer) Finalize(ctx context.Context, sessionID string) (*service.FinalizeResult, error) {
	f.finalized = append(f.finalized, sessionID)
	return &service.FinalizeResult{SessionID: sessionID, Status: string(models.CopilotStatusEnded)}, nil
}

type fakeTranscriptSink struct {
	mu      sync.Mutex
	lines   map[string][]string
	flushed map[string]models.MeetingStatus
}

func (f *fakeTranscriptSink) Append(meetingID, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines == nil {
		f.lines = make(map[string][]string)
	}
	f.lines[meetingID] = append(f.lines[meetingID], line)
}

func (f *fakeTranscriptSink) FlushNow(meetingID string, forceStatus models.MeetingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flushed == nil {
		f.flushed = make(map[string]models.MeetingStatus)
	}
	f.flushed[meetingID] = forceStatus
}

func newTestHandler(sessions *fakeSessionStore, meetings *fakeMeetingStore) (*Handler, *fakeCompleter, *fakeFinalizer, *fakeTranscriptSink) {
	completer := &fakeCompleter{answer: "the answer"}
	finalizer := &fakeFinalizer{}
	sink := &fakeTranscriptSink{}
	h := NewHandler(NewHub(), nil, sessions, meetings, completer, finalizer, sink, false)
	return h, completer, finalizer, sink
}

func testSession() *models.CopilotSession {
	return &models.CopilotSession{
		ID:          "sess-1",
		OwnerUserID: "owner",
		Status:      models.CopilotStatusActive,
		JoinCode:    "A1B2C3",
		Title:       "Mock interview",
	}
}

func TestCopilotJoinCaseInsensitiveCode(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, _, _ := newTestHandler(sessions, &fakeMeetingStore{})

	c, sock := roomClient("conn-1", "guest", "")
	h.handleCopilotJoin(context.Background(), c, JoinPayload{
		SessionID:  "sess-1",
		JoinCode:   "a1b2c3",
		DeviceType: deviceTypeConsole,
	})

	var joined map[string]any
	if !sock.lastData(t, "copilot_joined", &joined) {
		t.Fatalf("no joined frame, events = %v", sock.events())
	}
	if joined["isOwner"] != false {
		t.Errorf("isOwner = %v", joined["isOwner"])
	}
	if _, leaked := joined["joinCode"]; leaked {
		t.Error("join code leaked to non-owner")
	}
}

func TestCopilotJoinRejectsWrongCode(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, _, _ := newTestHandler(sessions, &fakeMeetingStore{})

	c, sock := roomClient("conn-1", "guest", "")
	h.handleCopilotJoin(context.Background(), c, JoinPayload{SessionID: "sess-1", JoinCode: "FFFFFF"})

	var errPayload map[string]string
	if !sock.lastData(t, "copilot_error", &errPayload) {
		t.Fatalf("expected error frame, events = %v", sock.events())
	}
	if errPayload["message"] != "Invalid join code" {
		t.Errorf("message = %q", errPayload["message"])
	}
	if c.copilotRoom() != nil && h.hub.RoomSize("sess-1") != 0 {
		t.Error("rejected client ended up in the room")
	}
}

func TestCopilotOwnerJoinsWithoutCodeAndSeesIt(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, _, _ := newTestHandler(sessions, &fakeMeetingStore{})

	c, sock := roomClient("conn-1", "owner", "")
	h.handleCopilotJoin(context.Background(), c, JoinPayload{SessionID: "sess-1", DeviceType: deviceTypeOverlay})

	var joined map[string]any
	if !sock.lastData(t, "copilot_joined", &joined) {
		t.Fatalf("no joined frame, events = %v", sock.events())
	}
	if joined["isOwner"] != true {
		t.Errorf("isOwner = %v", joined["isOwner"])
	}
	if joined["joinCode"] != "A1B2C3" {
		t.Errorf("owner joinCode = %v", joined["joinCode"])
	}
}

func TestCopilotJoinReplacesDeviceAndCapsList(t *testing.T) {
	session := testSession()
	for i := 0; i < maxConnectedDevices; i++ {
		session.ConnectedDevices = append(session.ConnectedDevices, models.ConnectedDevice{
			DeviceType:   "extension",
			ConnectionID: string(rune('a' + i)),
		})
	}
	// A stale entry for the reconnecting connection must be pruned, not doubled.
	session.ConnectedDevices[0].ConnectionID = "conn-1"
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": session}}
	h, _, _, _ := newTestHandler(sessions, &fakeMeetingStore{})

	c, _ := roomClient("conn-1", "owner", "")
	h.handleCopilotJoin(context.Background(), c, JoinPayload{SessionID: "sess-1", DeviceType: deviceTypeConsole})

	devices := sessions.sessions["sess-1"].ConnectedDevices
	if len(devices) > maxConnectedDevices {
		t.Fatalf("device list = %d entries, cap is %d", len(devices), maxConnectedDevices)
	}
	seen := 0
	for _, d := range devices {
		if d.ConnectionID == "conn-1" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("conn-1 appears %d times, want exactly 1", seen)
	}
	if devices[len(devices)-1].ConnectionID != "conn-1" {
		t.Error("reconnect was not appended as most recent")
	}
}

func TestCopilotActionsRequireJoin(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, finalizer, _ := newTestHandler(sessions, &fakeMeetingStore{})

	c, sock := roomClient("conn-1", "owner", "")
	ctx := context.Background()

	h.handleCopilotTranscriptChunk(ctx, c, TranscriptChunkPayload{SessionID: "sess-1", Text: "hi"})
	h.handleCopilotEnd(ctx, c, SessionRefPayload{SessionID: "sess-1"})

	var errPayload map[string]string
	if !sock.lastData(t, "copilot_error", &errPayload) {
		t.Fatal("expected join-first rejection")
	}
	if errPayload["message"] != "Join the session first" {
		t.Errorf("message = %q", errPayload["message"])
	}
	if len(sessions.sessions["sess-1"].Transcript) != 0 {
		t.Error("transcript mutated without join")
	}
	if len(finalizer.finalized) != 0 {
		t.Error("finalize ran without join")
	}
}

func TestCopilotEndOwnerOnly(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, finalizer, _ := newTestHandler(sessions, &fakeMeetingStore{})
	ctx := context.Background()

	guest, guestSock := roomClient("conn-g", "guest", "")
	guest.setCopilot(&copilotMembership{sessionID: "sess-1", isOwner: false, deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", guest)

	h.handleCopilotEnd(ctx, guest, SessionRefPayload{SessionID: "sess-1"})
	var errPayload map[string]string
	if !guestSock.lastData(t, "copilot_error", &errPayload) || errPayload["message"] != "Forbidden" {
		t.Errorf("guest end: events = %v", guestSock.events())
	}
	if len(finalizer.finalized) != 0 {
		t.Fatal("guest triggered finalize")
	}

	owner, ownerSock := roomClient("conn-o", "owner", "")
	owner.setCopilot(&copilotMembership{sessionID: "sess-1", isOwner: true, deviceType: deviceTypeOverlay})
	h.hub.Join("sess-1", owner)

	h.handleCopilotEnd(ctx, owner, SessionRefPayload{SessionID: "sess-1"})
	if len(finalizer.finalized) != 1 || finalizer.finalized[0] != "sess-1" {
		t.Errorf("finalized = %v", finalizer.finalized)
	}
	var endPayload map[string]string
	if !ownerSock.lastData(t, "copilot_end", &endPayload) {
		t.Fatalf("no end broadcast, events = %v", ownerSock.events())
	}
	if endPayload["status"] != "ENDED" {
		t.Errorf("end status = %q", endPayload["status"])
	}
}

func TestCopilotAIRequestStreamsAndPersists(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, _, _ := newTestHandler(sessions, &fakeMeetingStore{})
	ctx := context.Background()

	console, consoleSock := roomClient("conn-c", "guest", "")
	console.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", console)

	h.handleCopilotAIRequest(ctx, console, AIRequestPayload{
		SessionID: "sess-1",
		Messages:  []ai.Message{{Role: "user", Content: "help"}},
	})

	events := consoleSock.events()
	var tokens, responses int
	for _, e := range events {
		switch e {
		case "copilot_ai_token":
			tokens++
		case "copilot_ai_response":
			responses++
		}
	}
	if tokens == 0 {
		t.Error("no token frames delivered")
	}
	if responses != 1 {
		t.Errorf("responses = %d, want 1", responses)
	}
	if len(sessions.aiMsgs) != 1 || sessions.aiMsgs[0].Content != "the answer" {
		t.Errorf("persisted aiMsgs = %v", sessions.aiMsgs)
	}
	var status map[string]string
	if !consoleSock.lastData(t, "copilot_ai_status", &status) || status["status"] != "done" {
		t.Errorf("final status = %v", status)
	}
}

func TestCopilotAIRequestFallsBackWhenStreamFails(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, completer, _, _ := newTestHandler(sessions, &fakeMeetingStore{})
	completer.streamErr = context.DeadlineExceeded
	ctx := context.Background()

	console, consoleSock := roomClient("conn-c", "guest", "")
	console.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", console)

	h.handleCopilotAIRequest(ctx, console, AIRequestPayload{
		SessionID: "sess-1",
		Messages:  []ai.Message{{Role: "user", Content: "help"}},
	})

	if completer.calls != 1 {
		t.Errorf("non-streaming calls = %d, want 1 fallback", completer.calls)
	}
	var response map[string]string
	if !consoleSock.lastData(t, "copilot_ai_response", &response) {
		t.Fatal("no response after fallback")
	}
	if response["content"] != "the answer" {
		t.Errorf("content = %q", response["content"])
	}
}

func TestCopilotAIRequestSupersededStreamGoesSilent(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, completer, _, _ := newTestHandler(sessions, &fakeMeetingStore{})
	completer.blockFirstStream = true
	completer.streamStarted = make(chan struct{})
	ctx := context.Background()

	console, consoleSock := roomClient("conn-c", "guest", "")
	console.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", console)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.handleCopilotAIRequest(ctx, console, AIRequestPayload{
			SessionID: "sess-1",
			Messages:  []ai.Message{{Role: "user", Content: "first"}},
		})
	}()
	<-completer.streamStarted

	// The second request supersedes the blocked one, which must go silent
	// rather than downgrade to a one-shot call.
	h.handleCopilotAIRequest(ctx, console, AIRequestPayload{
		SessionID: "sess-1",
		Messages:  []ai.Message{{Role: "user", Content: "second"}},
	})
	wg.Wait()

	if got := completer.callCount(); got != 0 {
		t.Errorf("non-streaming calls = %d, want 0 for a superseded stream", got)
	}
	responses := 0
	for _, e := range consoleSock.events() {
		if e == "copilot_ai_response" {
			responses++
		}
	}
	if responses != 1 {
		t.Errorf("ai_response frames = %d, want only the superseding answer", responses)
	}
	if len(sessions.aiMsgs) != 1 {
		t.Errorf("persisted %d AI messages, want only the superseding answer", len(sessions.aiMsgs))
	}
}

func TestBystanderDisconnectKeepsStreamAndCaches(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, finalizer, _ := newTestHandler(sessions, &fakeMeetingStore{})

	owner, _ := roomClient("conn-o", "owner", "")
	owner.setCopilot(&copilotMembership{sessionID: "sess-1", isOwner: true, deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", owner)
	overlay, _ := roomClient("conn-b", "guest", "")
	overlay.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceTypeOverlay})
	h.hub.Join("sess-1", overlay)

	h.hub.Screenshots().Add("sess-1", "img-1")
	cancelled := make(chan struct{})
	h.hub.RegisterStream("sess-1", func() { close(cancelled) })

	h.handleDisconnect(overlay)

	select {
	case <-cancelled:
		t.Fatal("bystander disconnect cancelled the in-flight stream")
	default:
	}
	if got := h.hub.Screenshots().Get("sess-1"); len(got) != 1 {
		t.Errorf("screenshots after bystander disconnect = %v, want kept", got)
	}
	if len(finalizer.finalized) != 0 {
		t.Error("bystander disconnect triggered finalize")
	}

	// The last member leaving releases everything.
	h.handleDisconnect(owner)
	select {
	case <-cancelled:
	default:
		t.Error("room emptying did not cancel the stream")
	}
	if got := h.hub.Screenshots().Get("sess-1"); len(got) != 0 {
		t.Errorf("screenshots after room emptied = %v, want cleared", got)
	}
}

func TestOwnerDisconnectFinalizesActiveSession(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, _, finalizer, _ := newTestHandler(sessions, &fakeMeetingStore{})

	owner, _ := roomClient("conn-o", "owner", "")
	owner.setCopilot(&copilotMembership{sessionID: "sess-1", isOwner: true, deviceType: deviceTypeOverlay})
	h.hub.Join("sess-1", owner)
	guest, guestSock := roomClient("conn-g", "guest", "")
	guest.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", guest)

	h.handleDisconnect(owner)

	if len(finalizer.finalized) != 1 || finalizer.finalized[0] != "sess-1" {
		t.Fatalf("finalized = %v, want [sess-1]", finalizer.finalized)
	}
	var endPayload map[string]string
	if !guestSock.lastData(t, "copilot_end", &endPayload) {
		t.Fatalf("remaining member got no end frame, events = %v", guestSock.events())
	}
	if endPayload["status"] != "ENDED" {
		t.Errorf("end status = %q", endPayload["status"])
	}
}

func TestOwnerDisconnectSkipsTerminalSession(t *testing.T) {
	session := testSession()
	session.Status = models.CopilotStatusEnded
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": session}}
	h, _, finalizer, _ := newTestHandler(sessions, &fakeMeetingStore{})

	owner, _ := roomClient("conn-o", "owner", "")
	owner.setCopilot(&copilotMembership{sessionID: "sess-1", isOwner: true, deviceType: deviceTypeOverlay})
	h.hub.Join("sess-1", owner)

	h.handleDisconnect(owner)

	if len(finalizer.finalized) != 0 {
		t.Errorf("finalized = %v, want none for an already ended session", finalizer.finalized)
	}
}

func TestAIRequestDispatchDoesNotBlockReadLoop(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*models.CopilotSession{"sess-1": testSession()}}
	h, completer, _, _ := newTestHandler(sessions, &fakeMeetingStore{})
	completer.blockFirstStream = true
	completer.streamStarted = make(chan struct{}, 1)
	ctx := context.Background()

	console, _ := roomClient("conn-c", "guest", "")
	console.setCopilot(&copilotMembership{sessionID: "sess-1", deviceType: deviceTypeConsole})
	h.hub.Join("sess-1", console)

	raw := json.RawMessage(`{"sessionId":"sess-1","messages":[{"role":"user","content":"help"}]}`)
	dispatched := make(chan struct{})
	go func() {
		h.dispatchCopilot(ctx, console, KindCopilotAIRequest, raw)
		close(dispatched)
	}()

	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked behind a streaming AI request")
	}

	<-completer.streamStarted
	h.hub.CancelStream("sess-1")
}

func TestMeetingAttendeeLock(t *testing.T) {
	meetings := &fakeMeetingStore{meetings: map[string]*models.Meeting{
		"m-1": {ID: "m-1", MentorID: "mentor", MeetingKey: "KEY123", Status: models.MeetingStatusScheduled},
	}}
	h, _, _, _ := newTestHandler(&fakeSessionStore{sessions: map[string]*models.CopilotSession{}}, meetings)
	ctx := context.Background()

	first, firstSock := roomClient("conn-1", "alice", "")
	h.handleJoinMeeting(ctx, first, JoinMeetingPayload{MeetingID: "m-1", MeetingKey: "key123"})
	var joined map[string]any
	if !firstSock.lastData(t, EventMeetingJoined, &joined) {
		t.Fatalf("first attendee not joined, events = %v", firstSock.events())
	}
	if joined["role"] != "attendee" {
		t.Errorf("role = %v", joined["role"])
	}

	second, secondSock := roomClient("conn-2", "bob", "")
	h.handleJoinMeeting(ctx, second, JoinMeetingPayload{MeetingID: "m-1", MeetingKey: "KEY123"})
	var errPayload map[string]string
	if !secondSock.lastData(t, EventMeetingError, &errPayload) {
		t.Fatalf("second identity not rejected, events = %v", secondSock.events())
	}
	if errPayload["message"] != "This key is already used by another user" {
		t.Errorf("message = %q", errPayload["message"])
	}

	// The original attendee may rejoin.
	rejoin, rejoinSock := roomClient("conn-3", "alice", "")
	h.handleJoinMeeting(ctx, rejoin, JoinMeetingPayload{MeetingID: "m-1", MeetingKey: "KEY123"})
	if !rejoinSock.lastData(t, EventMeetingJoined, &joined) {
		t.Errorf("locked attendee could not rejoin, events = %v", rejoinSock.events())
	}
}

func TestMeetingMentorJoinPromotesStatus(t *testing.T) {
	meetings := &fakeMeetingStore{meetings: map[string]*models.Meeting{
		"m-1": {ID: "m-1", MentorID: "mentor", MeetingKey: "KEY123", Status: models.MeetingStatusApproved},
	}}
	h, _, _, _ := newTestHandler(&fakeSessionStore{sessions: map[string]*models.CopilotSession{}}, meetings)

	mentor, mentorSock := roomClient("conn-1", "mentor", "")
	h.handleJoinMeeting(context.Background(), mentor, JoinMeetingPayload{MeetingID: "m-1", MeetingKey: "KEY123"})

	var status map[string]string
	if !mentorSock.lastData(t, EventMeetingStatus, &status) {
		t.Fatalf("no status frame, events = %v", mentorSock.events())
	}
	if status["status"] != string(models.MeetingStatusInProgress) {
		t.Errorf("status = %q, want IN_PROGRESS", status["status"])
	}
	if meetings.meetings["m-1"].MentorJoinedAt == nil {
		t.Error("mentor join timestamp not recorded")
	}
}

func TestMeetingEndFlushesWithStatus(t *testing.T) {
	meetings := &fakeMeetingStore{meetings: map[string]*models.Meeting{
		"m-1": {ID: "m-1", MentorID: "mentor", MeetingKey: "KEY123", Status: models.MeetingStatusInProgress},
	}}
	h, _, _, sink := newTestHandler(&fakeSessionStore{sessions: map[string]*models.CopilotSession{}}, meetings)
	ctx := context.Background()

	mentor, _ := roomClient("conn-1", "mentor", "")
	h.handleJoinMeeting(ctx, mentor, JoinMeetingPayload{MeetingID: "m-1", MeetingKey: "KEY123"})
	h.handleMeetingTranscriptChunk(ctx, mentor, MeetingTranscriptPayload{MeetingID: "m-1", Text: "hello"})
	h.handleMeetingEnd(ctx, mentor, MeetingRefPayload{MeetingID: "m-1"})

	if got := sink.lines["m-1"]; len(got) != 1 || got[0] != "hello" {
		t.Errorf("buffered lines = %v", got)
	}
	if got := sink.flushed["m-1"]; got != models.MeetingStatusCompleted {
		t.Errorf("flush status = %q, want COMPLETED", got)
	}
}

func TestMeetingActionsRequireJoin(t *testing.T) {
	meetings := &fakeMeetingStore{meetings: map[string]*models.Meeting{
		"m-1": {ID: "m-1", MentorID: "mentor", MeetingKey: "KEY123", Status: models.MeetingStatusInProgress},
	}}
	h, _, _, sink := newTestHandler(&fakeSessionStore{sessions: map[string]*models.CopilotSession{}}, meetings)

	c, sock := roomClient("conn-1", "alice", "")
	h.handleMeetingTranscriptChunk(context.Background(), c, MeetingTranscriptPayload{MeetingID: "m-1", Text: "sneaky"})

	var errPayload map[string]string
	if !sock.lastData(t, EventMeetingError, &errPayload) || errPayload["message"] != "Join the meeting first" {
		t.Errorf("events = %v", sock.events())
	}
	if len(sink.lines["m-1"]) != 0 {
		t.Error("transcript buffered without join")
	}
}
