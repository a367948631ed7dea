package performance

import (
	"errors"
	"testing"
	"time"
)

func TestTracker_CountsPerSession(t *testing.T) {
	tr := NewTracker()

	tr.RecordCycle("betfair/Ascot_R1", 8, 100*time.Millisecond)
	tr.RecordCycle("betfair/Ascot_R1", 9, 300*time.Millisecond)
	tr.RecordFailure("sportsbet/Ascot_R1", errors.New("no outcome cards"))
	tr.RecordRecovery("sportsbet/Ascot_R1")
	tr.RecordFatal("sportsbet/Ascot_R1")
	tr.RecordPublish(2 * time.Millisecond)

	s := tr.Snapshot()
	if s.TotalCycles != 2 || s.TotalFailures != 1 || s.TotalRecoveries != 1 || s.TotalFatal != 1 || s.TotalPublishes != 1 {
		t.Fatalf("totals = %+v", s)
	}
	if s.AvgCycle != 200*time.Millisecond {
		t.Errorf("AvgCycle = %v, want 200ms", s.AvgCycle)
	}
	if len(s.Sessions) != 2 || s.Sessions[0].SessionID != "betfair/Ascot_R1" {
		t.Fatalf("sessions = %+v, want two sorted by id", s.Sessions)
	}
	if s.Sessions[0].Runners != 9 {
		t.Errorf("runners = %d, want last reported 9", s.Sessions[0].Runners)
	}
	if s.Sessions[1].LastError != "no outcome cards" {
		t.Errorf("last error = %q", s.Sessions[1].LastError)
	}
}

func TestTracker_CycleClearsLastError(t *testing.T) {
	tr := NewTracker()
	tr.RecordFailure("s", errors.New("boom"))
	tr.RecordCycle("s", 1, time.Millisecond)

	if got := tr.Snapshot().Sessions[0].LastError; got != "" {
		t.Errorf("LastError = %q after a good cycle, want empty", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.RecordCycle("s", 1, time.Millisecond)
	tr.Reset()

	s := tr.Snapshot()
	if s.TotalCycles != 0 || len(s.Sessions) != 0 {
		t.Errorf("after Reset = %+v, want empty", s)
	}
}
