package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Tracker tracks per-session streaming metrics
type Tracker struct {
	mu sync.RWMutex

	// Overall metrics
	TotalCycles     int
	TotalFailures   int
	TotalRecoveries int
	TotalFatal      int
	TotalPublishes  int

	// Timing metrics
	CycleDuration   time.Duration
	PublishDuration time.Duration

	sessions map[string]*SessionStats
}

// SessionStats tracks counters for a single (source, race) session
type SessionStats struct {
	SessionID    string        `json:"session_id"`
	Cycles       int           `json:"cycles"`
	Failures     int           `json:"failures"`
	Recoveries   int           `json:"recoveries"`
	Fatal        int           `json:"fatal"`
	Runners      int           `json:"runners"`
	LastCycle    time.Duration `json:"last_cycle_ns"`
	LastError    string        `json:"last_error,omitempty"`
	LastUpdateAt time.Time     `json:"last_update_at"`
}

// Summary is a point-in-time copy of the tracker
type Summary struct {
	TotalCycles     int            `json:"total_cycles"`
	TotalFailures   int            `json:"total_failures"`
	TotalRecoveries int            `json:"total_recoveries"`
	TotalFatal      int            `json:"total_fatal"`
	TotalPublishes  int            `json:"total_publishes"`
	AvgCycle        time.Duration  `json:"avg_cycle_ns"`
	AvgPublish      time.Duration  `json:"avg_publish_ns"`
	Sessions        []SessionStats `json:"sessions"`
}

var globalTracker = NewTracker()

// GetTracker returns the global performance tracker
func GetTracker() *Tracker {
	return globalTracker
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*SessionStats)}
}

// Reset resets all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalCycles = 0
	t.TotalFailures = 0
	t.TotalRecoveries = 0
	t.TotalFatal = 0
	t.TotalPublishes = 0
	t.CycleDuration = 0
	t.PublishDuration = 0
	t.sessions = make(map[string]*SessionStats)
}

func (t *Tracker) session(id string) *SessionStats {
	s, ok := t.sessions[id]
	if !ok {
		s = &SessionStats{SessionID: id}
		t.sessions[id] = s
	}
	return s
}

// RecordCycle records a successful refresh-and-extract cycle
func (t *Tracker) RecordCycle(sessionID string, runners int, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalCycles++
	t.CycleDuration += d
	s := t.session(sessionID)
	s.Cycles++
	s.Runners = runners
	s.LastCycle = d
	s.LastError = ""
	s.LastUpdateAt = time.Now()
}

// RecordFailure records a failed cycle
func (t *Tracker) RecordFailure(sessionID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalFailures++
	s := t.session(sessionID)
	s.Failures++
	if err != nil {
		s.LastError = err.Error()
	}
}

// RecordRecovery records a successful reinitialization
func (t *Tracker) RecordRecovery(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalRecoveries++
	t.session(sessionID).Recoveries++
}

// RecordFatal records a session that could not be reinitialized
func (t *Tracker) RecordFatal(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalFatal++
	t.session(sessionID).Fatal++
}

// RecordPublish records one aggregator publish
func (t *Tracker) RecordPublish(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalPublishes++
	t.PublishDuration += d
}

// Snapshot returns a copy of all counters, sessions sorted by id
func (t *Tracker) Snapshot() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := Summary{
		TotalCycles:     t.TotalCycles,
		TotalFailures:   t.TotalFailures,
		TotalRecoveries: t.TotalRecoveries,
		TotalFatal:      t.TotalFatal,
		TotalPublishes:  t.TotalPublishes,
		Sessions:        make([]SessionStats, 0, len(t.sessions)),
	}
	if t.TotalCycles > 0 {
		out.AvgCycle = t.CycleDuration / time.Duration(t.TotalCycles)
	}
	if t.TotalPublishes > 0 {
		out.AvgPublish = t.PublishDuration / time.Duration(t.TotalPublishes)
	}
	for _, s := range t.sessions {
		out.Sessions = append(out.Sessions, *s)
	}
	sort.Slice(out.Sessions, func(i, j int) bool { return out.Sessions[i].SessionID < out.Sessions[j].SessionID })
	return out
}

// PrintSummary prints a performance summary
func (t *Tracker) PrintSummary() {
	s := t.Snapshot()
	if s.TotalCycles == 0 && s.TotalFailures == 0 {
		slog.Info("No performance data collected yet")
		return
	}

	slog.Info("PERFORMANCE SUMMARY",
		"total_cycles", s.TotalCycles,
		"total_failures", s.TotalFailures,
		"total_recoveries", s.TotalRecoveries,
		"total_fatal", s.TotalFatal,
		"total_publishes", s.TotalPublishes,
		"avg_cycle", s.AvgCycle,
		"avg_publish", s.AvgPublish)

	for _, sess := range s.Sessions {
		slog.Info("Session",
			"session", sess.SessionID,
			"cycles", sess.Cycles,
			"failures", sess.Failures,
			"recoveries", sess.Recoveries,
			"fatal", sess.Fatal,
			"runners", sess.Runners,
			"last_error", sess.LastError)
	}
}
