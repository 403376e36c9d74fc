package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"interview-copilot-service/src/models"
)

type fakeExpiredMeetings struct {
	candidates []models.Meeting
	updated    map[string]models.MeetingStatus
	failOn     string
}

func (s *fakeExpiredMeetings) ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Meeting, error) {
	return s.candidates, nil
}

func (s *fakeExpiredMeetings) UpdateStatus(ctx context.Context, id string, status models.MeetingStatus) error {
	if id == s.failOn {
		return errors.New("update failed")
	}
	if s.updated == nil {
		s.updated = make(map[string]models.MeetingStatus)
	}
	s.updated[id] = status
	return nil
}

type fakeExpiredInterviews struct {
	candidates []models.Interview
	updated    map[string]models.InterviewStatus
}

func (s *fakeExpiredInterviews) ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Interview, error) {
	return s.candidates, nil
}

func (s *fakeExpiredInterviews) UpdateStatus(ctx context.Context, id string, status models.InterviewStatus) error {
	if s.updated == nil {
		s.updated = make(map[string]models.InterviewStatus)
	}
	s.updated[id] = status
	return nil
}

func TestSweepResolvesMeetingsByUsage(t *testing.T) {
	joined := time.Now().Add(-time.Hour)
	meetings := &fakeExpiredMeetings{candidates: []models.Meeting{
		{ID: "m-used", MentorJoinedAt: &joined},
		{ID: "m-unused"},
	}}
	interviews := &fakeExpiredInterviews{}
	sweeper := NewExpirySweeper(meetings, interviews)

	sweeper.Sweep(context.Background())

	if got := meetings.updated["m-used"]; got != models.MeetingStatusCompleted {
		t.Errorf("m-used = %s, want COMPLETED", got)
	}
	if got := meetings.updated["m-unused"]; got != models.MeetingStatusExpired {
		t.Errorf("m-unused = %s, want EXPIRED", got)
	}
}

func TestSweepResolvesInterviewsByUsage(t *testing.T) {
	meetings := &fakeExpiredMeetings{}
	interviews := &fakeExpiredInterviews{candidates: []models.Interview{
		{ID: "iv-used", TotalSessionSeconds: 300},
		{ID: "iv-unused"},
	}}
	sweeper := NewExpirySweeper(meetings, interviews)

	sweeper.Sweep(context.Background())

	if got := interviews.updated["iv-used"]; got != models.InterviewStatusCompleted {
		t.Errorf("iv-used = %s, want COMPLETED", got)
	}
	if got := interviews.updated["iv-unused"]; got != models.InterviewStatusExpired {
		t.Errorf("iv-unused = %s, want EXPIRED", got)
	}
}

func TestSweepIsolatesPerRecordFailures(t *testing.T) {
	meetings := &fakeExpiredMeetings{
		candidates: []models.Meeting{{ID: "m-bad"}, {ID: "m-good"}},
		failOn:     "m-bad",
	}
	interviews := &fakeExpiredInterviews{candidates: []models.Interview{{ID: "iv-1"}}}
	sweeper := NewExpirySweeper(meetings, interviews)

	sweeper.Sweep(context.Background())

	if _, ok := meetings.updated["m-good"]; !ok {
		t.Error("m-good not resolved after m-bad failure")
	}
	if _, ok := interviews.updated["iv-1"]; !ok {
		t.Error("interview pass skipped after meeting failure")
	}
}

func TestSweeperStartStopIdempotent(t *testing.T) {
	sweeper := NewExpirySweeper(&fakeExpiredMeetings{}, &fakeExpiredInterviews{})
	sweeper.interval = time.Hour

	sweeper.Start()
	sweeper.Start() // second start must not spawn another loop
	sweeper.Stop()
	sweeper.Stop() // second stop must not panic or block
}
