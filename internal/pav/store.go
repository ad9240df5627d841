package pav

import "pav-go/internal/model"

// RecordStore provides durable storage of arrival records. Implementations
// own schema evolution and enforce the forward-only status state machine;
// callers are trusted for everything else.
type RecordStore interface {
	// CreateArrival inserts a fully populated record. The record arrives
	// with its id, status, processing and sync bookkeeping already set by
	// the service layer.
	CreateArrival(rec *model.ArrivalRecord) error

	// GetAll returns every record, newest first (createdAt descending).
	GetAll() ([]*model.ArrivalRecord, error)

	// GetByID returns one record, or ErrNotFound.
	GetByID(id string) (*model.ArrivalRecord, error)

	// GetUnsynced returns records not yet delivered to the collector,
	// oldest first (createdAt ascending) for FIFO delivery.
	GetUnsynced() ([]*model.ArrivalRecord, error)

	// FindReadyToExit returns the open ready_to_exit visit for a vehicle,
	// or nil when the vehicle has none.
	FindReadyToExit(vehicleID string) (*model.ArrivalRecord, error)

	// UpdateStatus advances a record's status, optionally recording
	// processingEndTime (epoch millis, written at most once). Illegal
	// transitions fail with InvalidTransitionError; unknown ids with
	// ErrNotFound.
	UpdateStatus(id string, status model.Status, processingEndTime *int64) error

	// RecordExit writes all exit facts and sets status to exited in a
	// single update. Only legal from ready_to_exit.
	RecordExit(id string, exit model.ExitFacts) error

	// MarkSynced flips the synced flag to true. Idempotent; the flag is
	// never reset.
	MarkSynced(id string) error

	// GetSetting returns a persisted preference value, or "" when unset.
	GetSetting(key string) (string, error)

	// SetSetting stores a preference value, replacing any previous one.
	SetSetting(key, value string) error

	// BackupTo writes a complete snapshot of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the underlying database.
	Close() error
}
