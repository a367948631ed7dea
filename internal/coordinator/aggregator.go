package coordinator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/pkg/performance"
)

// SnapshotReader is the read side of a streaming session.
type SnapshotReader interface {
	Source() models.Source
	Latest() models.OddsSnapshot
}

// Sink receives every published generation of the odds store.
type Sink interface {
	Name() string
	Publish(ctx context.Context, odds *oddsstore.Odds) error
}

// RaceSessions groups the sessions streaming one matched race.
type RaceSessions struct {
	Race     models.MatchedRace
	Sessions []SnapshotReader
}

type raceGroup struct {
	key      string
	sessions []SnapshotReader
}

// DefaultSinkTimeout bounds one Sink.Publish call.
const DefaultSinkTimeout = 10 * time.Second

// sinkWorker feeds one sink from a single-slot queue holding the newest
// generation not yet published.
type sinkWorker struct {
	sink    Sink
	pending chan *oddsstore.Odds
}

// offer queues odds, replacing a generation the sink has not picked up yet.
// Only the tick goroutine calls it.
func (w *sinkWorker) offer(odds *oddsstore.Odds) {
	select {
	case w.pending <- odds:
		return
	default:
	}
	select {
	case <-w.pending:
	default:
	}
	select {
	case w.pending <- odds:
	default:
	}
}

// Aggregator merges session snapshots into the odds store.
type Aggregator struct {
	groups      []raceGroup
	store       *oddsstore.Store
	sinks       []*sinkWorker
	sinkTimeout time.Duration
	logger      *slog.Logger
	tracker     *performance.Tracker
	now         func() time.Time
}

func NewAggregator(races []RaceSessions, primary models.Source, store *oddsstore.Store, sinks []Sink, logger *slog.Logger, tracker *performance.Tracker) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = performance.GetTracker()
	}
	a := &Aggregator{
		store:       store,
		sinkTimeout: DefaultSinkTimeout,
		logger:      logger.With("component", "aggregator"),
		tracker:     tracker,
		now:         time.Now,
	}
	for _, sink := range sinks {
		a.sinks = append(a.sinks, &sinkWorker{sink: sink, pending: make(chan *oddsstore.Odds, 1)})
	}

	seen := make(map[string]models.MatchKey, len(races))
	for _, r := range races {
		key := RaceKey(r.Race, primary)
		if prev, dup := seen[key]; dup {
			a.logger.Warn("Race key collision, keeping first race", "race_key", key, "kept", prev.String(), "dropped", r.Race.Key().String())
			continue
		}
		seen[key] = r.Race.Key()
		a.groups = append(a.groups, raceGroup{key: key, sessions: r.Sessions})
	}
	return a
}

// RaceKey is the store key of a matched race: the primary source's
// "{location}_R{number}", falling back to the lexically first source.
func RaceKey(race models.MatchedRace, primary models.Source) string {
	if m, ok := race.Primary(primary); ok {
		return m.RaceKey()
	}
	sources := make([]string, 0, len(race))
	for s := range race {
		sources = append(sources, string(s))
	}
	if len(sources) == 0 {
		return ""
	}
	sort.Strings(sources)
	return race[models.Source(sources[0])].RaceKey()
}

// Build assembles a new store generation from every session's latest snapshot.
func (a *Aggregator) Build() *oddsstore.Odds {
	out := &oddsstore.Odds{
		Races:     make(map[string]oddsstore.RaceOdds, len(a.groups)),
		UpdatedAt: a.now(),
	}
	for _, g := range a.groups {
		race := oddsstore.RaceOdds{}
		for _, s := range g.sessions {
			for runner, q := range s.Latest() {
				bySource, ok := race[runner]
				if !ok {
					bySource = make(map[models.Source]models.Quote, len(g.sessions))
					race[runner] = bySource
				}
				bySource[s.Source()] = q
			}
		}
		out.Races[g.key] = race
	}
	return out
}

// Tick publishes a fresh generation and queues it for every sink. It never
// waits on a sink; sinks are drained by the workers Run starts.
func (a *Aggregator) Tick(ctx context.Context) *oddsstore.Odds {
	start := time.Now()
	odds := a.Build()
	a.store.Publish(odds)
	a.tracker.RecordPublish(time.Since(start))

	for _, w := range a.sinks {
		w.offer(odds)
	}
	return odds
}

// Run ticks every interval until ctx is cancelled. Each sink publishes from
// its own goroutine, so a slow sink skips generations instead of delaying
// the store.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, w := range a.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.drain(ctx, w)
		}()
	}
	defer wg.Wait()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// drain publishes queued generations to one sink until ctx is cancelled.
// Publish errors are logged.
func (a *Aggregator) drain(ctx context.Context, w *sinkWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case odds := <-w.pending:
			pctx, cancel := context.WithTimeout(ctx, a.sinkTimeout)
			err := w.sink.Publish(pctx, odds)
			cancel()
			if err != nil && ctx.Err() == nil {
				a.logger.Warn("Sink publish failed", "sink", w.sink.Name(), "error", err)
			}
		}
	}
}
