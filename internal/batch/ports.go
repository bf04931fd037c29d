package batch

import (
	"context"
	"time"

	"jobmate/digest-service/internal/model"
	"jobmate/digest-service/internal/snapshot"
)

// SnapshotSource provides the read-only matching inputs for one batch date.
// Implemented by snapshot.Loader; tests substitute an in-memory source.
type SnapshotSource interface {
	Load(ctx context.Context, batchDate time.Time) (*snapshot.Snapshot, error)
}

// RunStore persists BatchRun rows. Implemented by store.RunStore.
type RunStore interface {
	// GetByDate returns the run for batchDate or store.ErrRunNotFound.
	GetByDate(ctx context.Context, batchDate time.Time) (*model.BatchRun, error)
	Create(ctx context.Context, run *model.BatchRun) error
	Update(ctx context.Context, run *model.BatchRun) error
}

// OutputWriter persists one user's mapping and pick rows idempotently.
// Implemented by store.Writer.
type OutputWriter interface {
	WriteUser(ctx context.Context, userID string, batchDate time.Time,
		mappings []model.Mapping, picks []model.DailyPick) error
}

// RunEvent is published on run lifecycle changes for the external
// monitoring surface.
type RunEvent struct {
	Type         string `json:"type"` // EVENT_DIGEST_RUN
	RunID        string `json:"runId"`
	BatchDate    string `json:"batchDate"`
	Status       string `json:"status"`
	SuccessCount int    `json:"successCount"`
	ErrorCount   int    `json:"errorCount"`
}

// EventPublisher broadcasts run lifecycle events and guards a batch date
// against concurrent runs. Implemented by events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event RunEvent) error
	// TryLock reports whether the caller acquired the per-date run lock.
	TryLock(ctx context.Context, batchDate time.Time, runID string) (bool, error)
	Unlock(ctx context.Context, batchDate time.Time) error
}
