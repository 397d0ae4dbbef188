// Package progress tracks in-flight synthesis requests and broadcasts stage
// transitions so clients can render status while long texts render.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fasttts-labs/fasttts-core/internal/protocol"
)

// Publisher is the slice of the bus client the tracker needs. A nil
// publisher disables broadcasting without disabling tracking.
type Publisher interface {
	PublishJSON(subject string, payload any) error
}

// Entry is the tracked state of one request.
type Entry struct {
	RequestID   string
	Stage       string
	ChunksDone  int
	ChunksTotal int
	Message     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tracker holds request progress in memory. Entries for finished requests
// are swept after the retention window so abandoned subscribers do not leak
// state.
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	publisher Publisher
	logger    *slog.Logger
	retention time.Duration
	clock     func() time.Time
}

func NewTracker(publisher Publisher, retention time.Duration, logger *slog.Logger) *Tracker {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &Tracker{
		entries:   make(map[string]*Entry),
		publisher: publisher,
		logger:    logger.With(slog.String("component", "progress")),
		retention: retention,
		clock:     time.Now,
	}
}

// StartSweeper runs periodic sweeps until the context ends. Create also
// sweeps opportunistically, so the sweeper only matters for idle services
// holding finished entries.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

// Create registers a new request and returns its id. An empty requestID gets
// a generated one.
func (t *Tracker) Create(requestID string) string {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	now := t.clock()

	t.mu.Lock()
	t.entries[requestID] = &Entry{
		RequestID: requestID,
		Stage:     StageQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Unlock()

	t.sweep()
	return requestID
}

// Update moves the request to a new stage and broadcasts the transition.
func (t *Tracker) Update(requestID, stage string, chunksDone, chunksTotal int, message string) {
	t.mu.Lock()
	entry, ok := t.entries[requestID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry.Stage = stage
	entry.ChunksDone = chunksDone
	entry.ChunksTotal = chunksTotal
	entry.Message = message
	entry.UpdatedAt = t.clock()
	update := t.toUpdate(entry)
	t.mu.Unlock()

	t.broadcast(update)
}

// Complete marks the request done.
func (t *Tracker) Complete(requestID string) {
	t.mu.Lock()
	entry, ok := t.entries[requestID]
	if ok {
		entry.Stage = StageDone
		entry.ChunksDone = entry.ChunksTotal
		entry.UpdatedAt = t.clock()
	}
	var update protocol.ProgressUpdate
	if ok {
		update = t.toUpdate(entry)
	}
	t.mu.Unlock()

	if ok {
		t.broadcast(update)
	}
}

// Fail marks the request failed with a reason.
func (t *Tracker) Fail(requestID, reason string) {
	t.mu.Lock()
	entry, ok := t.entries[requestID]
	if ok {
		entry.Stage = StageFailed
		entry.Message = reason
		entry.UpdatedAt = t.clock()
	}
	var update protocol.ProgressUpdate
	if ok {
		update = t.toUpdate(entry)
	}
	t.mu.Unlock()

	if ok {
		t.broadcast(update)
	}
}

// Get returns a copy of the tracked entry.
func (t *Tracker) Get(requestID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[requestID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

func (t *Tracker) toUpdate(e *Entry) protocol.ProgressUpdate {
	return protocol.ProgressUpdate{
		RequestID:   e.RequestID,
		Stage:       e.Stage,
		ChunksDone:  e.ChunksDone,
		ChunksTotal: e.ChunksTotal,
		Message:     e.Message,
		Timestamp:   e.UpdatedAt,
	}
}

func (t *Tracker) broadcast(update protocol.ProgressUpdate) {
	if t.publisher == nil {
		return
	}
	subject := protocol.ProgressSubject(update.RequestID)
	if err := t.publisher.PublishJSON(subject, update); err != nil {
		t.logger.Warn("publish progress update failed",
			slog.String("request_id", update.RequestID),
			slog.String("error", err.Error()))
	}
}

// sweep drops terminal entries older than the retention window.
func (t *Tracker) sweep() {
	cutoff := t.clock().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.entries {
		if terminal(entry.Stage) && entry.UpdatedAt.Before(cutoff) {
			delete(t.entries, id)
		}
	}
}

func terminal(stage string) bool {
	return stage == StageDone || stage == StageFailed
}

// Pipeline stages in execution order.
const (
	StageQueued       = "queued"
	StageSegmenting   = "segmenting"
	StageSynthesizing = "synthesizing"
	StageAligning     = "aligning"
	StageFinalizing   = "finalizing"
	StageDone         = "done"
	StageFailed       = "failed"
)

// Describe renders a short human-readable status line for an entry.
func Describe(e Entry) string {
	if e.ChunksTotal > 1 && e.Stage == StageSynthesizing {
		return fmt.Sprintf("%s %d/%d", e.Stage, e.ChunksDone, e.ChunksTotal)
	}
	return e.Stage
}
