package integration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SyncTaskStatus is the lifecycle state of a sync task
type SyncTaskStatus string

const (
	// SyncTaskPending is waiting for a dispatcher (possibly until NextAttemptAt)
	SyncTaskPending SyncTaskStatus = "pending"
	// SyncTaskInFlight is being pushed right now
	SyncTaskInFlight SyncTaskStatus = "in-flight"
	// SyncTaskDone was pushed successfully
	SyncTaskDone SyncTaskStatus = "done"
	// SyncTaskFailed exhausted its attempts and stays queryable for operators
	SyncTaskFailed SyncTaskStatus = "failed"
)

// String returns the string representation of SyncTaskStatus
func (s SyncTaskStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s SyncTaskStatus) IsValid() bool {
	switch s {
	case SyncTaskPending, SyncTaskInFlight, SyncTaskDone, SyncTaskFailed:
		return true
	default:
		return false
	}
}

// Sync task origins
const (
	OriginReservationConfirm = "reservation_confirm"
	OriginReconcileStock     = "reconcile_stock"
	OriginMerge              = "merge"
	OriginLedger             = "ledger"
	OriginOperator           = "operator"
)

// SyncTask is a unit of outbound work pushing canonical state to one marketplace
type SyncTask struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	CanonicalProductID uuid.UUID
	TargetPlatform     PlatformCode
	Fields             FieldSet
	TargetStock        *int64
	Status             SyncTaskStatus
	AttemptCount       int
	NextAttemptAt      time.Time
	LastError          string
	Origin             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// NewSyncTask creates a pending sync task that is due immediately
func NewSyncTask(ownerID, productID uuid.UUID, platform PlatformCode, fields FieldSet, origin string) (*SyncTask, error) {
	if productID == uuid.Nil {
		return nil, errors.New("integration: invalid canonical product ID")
	}
	if !platform.IsValid() {
		return nil, ErrInvalidPlatformCode
	}
	fields = NewFieldSet(fields...)
	if len(fields) == 0 {
		return nil, ErrInvalidSyncFields
	}
	now := time.Now()
	return &SyncTask{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		CanonicalProductID: productID,
		TargetPlatform:     platform,
		Fields:             fields,
		Status:             SyncTaskPending,
		NextAttemptAt:      now,
		Origin:             origin,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// WithTargetStock records a stock value on the task. Enqueuers record the on-hand quantity
// seen when the task was queued; the dispatcher re-reads the ledger at push time and replaces
// it with the value actually pushed. It is never used as the value to publish.
func (t *SyncTask) WithTargetStock(stock int64) *SyncTask {
	t.TargetStock = &stock
	return t
}

// Supersede folds a newer task for the same product and platform into this pending task.
// Fields are unioned, the newer stock target wins and the task becomes due immediately.
func (t *SyncTask) Supersede(newer *SyncTask) error {
	if t.Status != SyncTaskPending {
		return ErrSyncTaskInvalidStatus
	}
	t.Fields = t.Fields.Union(newer.Fields...)
	if newer.TargetStock != nil {
		stock := *newer.TargetStock
		t.TargetStock = &stock
	}
	if newer.NextAttemptAt.Before(t.NextAttemptAt) {
		t.NextAttemptAt = newer.NextAttemptAt
	}
	t.Origin = newer.Origin
	t.UpdatedAt = time.Now()
	return nil
}

// IsDue returns true if a pending task may be picked up at now
func (t *SyncTask) IsDue(now time.Time) bool {
	return t.Status == SyncTaskPending && !t.NextAttemptAt.After(now)
}

// StartAttempt moves a pending task in flight and counts the attempt
func (t *SyncTask) StartAttempt(now time.Time) error {
	if t.Status != SyncTaskPending {
		return ErrSyncTaskInvalidStatus
	}
	t.Status = SyncTaskInFlight
	t.AttemptCount++
	t.UpdatedAt = now
	return nil
}

// MarkDone records a successful push
func (t *SyncTask) MarkDone(now time.Time) error {
	if t.Status != SyncTaskInFlight {
		return ErrSyncTaskInvalidStatus
	}
	t.Status = SyncTaskDone
	t.LastError = ""
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// ScheduleRetry puts an in-flight task back to pending until nextAttemptAt
func (t *SyncTask) ScheduleRetry(errMsg string, nextAttemptAt, now time.Time) error {
	if t.Status != SyncTaskInFlight {
		return ErrSyncTaskInvalidStatus
	}
	t.Status = SyncTaskPending
	t.LastError = errMsg
	t.NextAttemptAt = nextAttemptAt
	t.UpdatedAt = now
	return nil
}

// MarkFailed records that the task exhausted its attempts
func (t *SyncTask) MarkFailed(errMsg string, now time.Time) error {
	if t.Status != SyncTaskInFlight {
		return ErrSyncTaskInvalidStatus
	}
	t.Status = SyncTaskFailed
	t.LastError = errMsg
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Retry lets an operator re-queue a failed task with a fresh attempt budget
func (t *SyncTask) Retry(now time.Time) error {
	if t.Status != SyncTaskFailed {
		return ErrSyncTaskNotRetryable
	}
	t.Status = SyncTaskPending
	t.AttemptCount = 0
	t.NextAttemptAt = now
	t.CompletedAt = nil
	t.UpdatedAt = now
	return nil
}
