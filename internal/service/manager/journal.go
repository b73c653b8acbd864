package manager

import (
	"sync"
	"time"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/metrics"
)

// journal records dispatch outcomes. It is safe for concurrent use: the
// accept loop writes while status requests read.
type journal struct {
	// mu protects stats.
	mu sync.RWMutex
	// stats accumulates counters since start.
	stats *alert.Stats
	// metrics mirrors the counters to Prometheus; nil disables it.
	metrics *metrics.Manager
}

func newJournal(startedAt time.Time, m *metrics.Manager) *journal {
	return &journal{
		stats:   alert.NewStats(startedAt),
		metrics: m,
	}
}

func (j *journal) record(event *alert.Event) {
	j.mu.Lock()
	j.stats.Record(event)
	j.mu.Unlock()

	j.metrics.ObserveClassified(event.Kind.String(), event.ReceivedAt)
}

func (j *journal) drop(reason string) {
	j.mu.Lock()
	j.stats.RecordDrop(reason)
	j.mu.Unlock()

	j.metrics.ObserveDrop(reason)
}

func (j *journal) replied(kind alert.Kind) {
	j.metrics.ObserveReply(kind.String())
}

func (j *journal) dispatched(took time.Duration) {
	j.metrics.ObserveDispatch(took)
}

func (j *journal) snapshot() *alert.Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.stats.Clone()
}
