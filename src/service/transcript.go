package service

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/models"
)

// transcriptFlushDelay batches rapid-fire transcript chunks into one write.
const transcriptFlushDelay = 2 * time.Second

// MeetingTranscriptStore appends combined transcript text to a meeting row.
type MeetingTranscriptStore interface {
	AppendTranscript(ctx context.Context, meetingID, combined string, forceStatus models.MeetingStatus) error
}

type transcriptBuffer struct {
	lines []string
	timer *time.Timer
}

// TranscriptBuffer coalesces final transcript chunks per meeting and flushes
// them to storage after a short quiet period, or immediately on demand when a
// meeting ends. Chunks keep arrival order within a meeting.
type TranscriptBuffer struct {
	store MeetingTranscriptStore
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*transcriptBuffer
}

func NewTranscriptBuffer(store MeetingTranscriptStore) *TranscriptBuffer {
	return &TranscriptBuffer{
		store:   store,
		delay:   transcriptFlushDelay,
		pending: make(map[string]*transcriptBuffer),
	}
}

// Append queues one final transcript chunk for the meeting and (re)arms the
// flush timer.
func (b *TranscriptBuffer) Append(meetingID, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.pending[meetingID]
	if !ok {
		buf = &transcriptBuffer{}
		b.pending[meetingID] = buf
	}
	buf.lines = append(buf.lines, line)

	if buf.timer == nil {
		buf.timer = time.AfterFunc(b.delay, func() {
			b.flush(meetingID, "")
		})
	}
}

// FlushNow writes any buffered chunks immediately. forceStatus, when set,
// is applied to the meeting alongside the flush (used by meeting end).
func (b *TranscriptBuffer) FlushNow(meetingID string, forceStatus models.MeetingStatus) {
	b.flush(meetingID, forceStatus)
}

func (b *TranscriptBuffer) flush(meetingID string, forceStatus models.MeetingStatus) {
	b.mu.Lock()
	buf, ok := b.pending[meetingID]
	if ok {
		if buf.timer != nil {
			buf.timer.Stop()
		}
		delete(b.pending, meetingID)
	}
	b.mu.Unlock()

	var combined string
	if ok {
		combined = strings.Join(buf.lines, "\n")
	}
	if combined == "" && forceStatus == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.store.AppendTranscript(ctx, meetingID, combined, forceStatus); err != nil {
		log.WithError(err).WithField("meeting_id", meetingID).
			Error("Failed to flush meeting transcript")
	}
}

// FlushAll drains every pending buffer. Called at shutdown.
func (b *TranscriptBuffer) FlushAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.flush(id, "")
	}
}
