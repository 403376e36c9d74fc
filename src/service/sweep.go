package service

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/models"
)

// sweepInterval is how often the expiry sweeper scans for overdue records.
const sweepInterval = 60 * time.Second

// ExpiredMeetingStore lists and resolves overdue meetings.
type ExpiredMeetingStore interface {
	ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Meeting, error)
	UpdateStatus(ctx context.Context, meetingID string, status models.MeetingStatus) error
}

// ExpiredInterviewStore lists and resolves overdue interviews.
type ExpiredInterviewStore interface {
	ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Interview, error)
	UpdateStatus(ctx context.Context, interviewID string, status models.InterviewStatus) error
}

// ExpirySweeper periodically resolves meetings and interviews whose window
// has passed. Records that saw any usage become COMPLETED, untouched ones
// become EXPIRED. Failures on one record never block the rest of the pass.
type ExpirySweeper struct {
	meetings   ExpiredMeetingStore
	interviews ExpiredInterviewStore
	interval   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	now func() time.Time
}

func NewExpirySweeper(meetings ExpiredMeetingStore, interviews ExpiredInterviewStore) *ExpirySweeper {
	return &ExpirySweeper{
		meetings:   meetings,
		interviews: interviews,
		interval:   sweepInterval,
		now:        time.Now,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	log.Info("Expiry sweeper started")
}

// Stop halts the loop and waits for an in-flight pass to finish. Safe to call
// multiple times.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.Info("Expiry sweeper stopped")
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass. Exported so tests and operational endpoints can
// trigger a pass without waiting for the ticker.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	now := s.now()

	meetings, err := s.meetings.ListExpiredCandidates(ctx, now)
	if err != nil {
		log.WithError(err).Error("Failed to list expired meeting candidates")
	}
	for _, m := range meetings {
		// A mentor who joined means the meeting actually took place.
		status := models.MeetingStatusExpired
		if m.MentorJoinedAt != nil {
			status = models.MeetingStatusCompleted
		}
		if err := s.meetings.UpdateStatus(ctx, m.ID, status); err != nil {
			log.WithError(err).WithField("meeting_id", m.ID).Error("Failed to resolve expired meeting")
			continue
		}
		log.WithFields(log.Fields{"meeting_id": m.ID, "status": status}).Info("Resolved overdue meeting")
	}

	interviews, err := s.interviews.ListExpiredCandidates(ctx, now)
	if err != nil {
		log.WithError(err).Error("Failed to list expired interview candidates")
	}
	for _, iv := range interviews {
		status := models.InterviewStatusExpired
		if iv.TotalSessionSeconds > 0 {
			status = models.InterviewStatusCompleted
		}
		if err := s.interviews.UpdateStatus(ctx, iv.ID, status); err != nil {
			log.WithError(err).WithField("interview_id", iv.ID).Error("Failed to resolve expired interview")
			continue
		}
		log.WithFields(log.Fields{"interview_id": iv.ID, "status": status}).Info("Resolved overdue interview")
	}
}
