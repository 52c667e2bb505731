package audit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bankcore/transaction-service/internal/core/logger"
)

// Entry is one structured audit record. Audit points are explicit calls from
// the service and event handlers; there is no interception magic.
type Entry struct {
	ID        int64
	EventType string
	Method    string
	Details   string
	User      string
	Outcome   string
	Timestamp time.Time
}

const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
	OutcomeAttempt = "ATTEMPT"
)

// Log is an append-only in-memory audit trail.
type Log struct {
	mu      sync.RWMutex
	entries map[int64]Entry
	nextID  int64
	log     logger.Logger
}

func NewLog(log logger.Logger) *Log {
	return &Log{
		entries: make(map[int64]Entry),
		log:     log,
	}
}

// Record stamps the entry with an id and timestamp and stores it.
func (l *Log) Record(entry Entry) {
	entry.ID = atomic.AddInt64(&l.nextID, 1)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.entries[entry.ID] = entry
	l.mu.Unlock()

	l.log.Info("AUDIT",
		logger.Int64Field("entry_id", entry.ID),
		logger.StringField("event_type", entry.EventType),
		logger.StringField("method", entry.Method),
		logger.StringField("user", entry.User),
		logger.StringField("outcome", entry.Outcome),
		logger.StringField("details", entry.Details),
	)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a snapshot of the trail, in no particular order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}
