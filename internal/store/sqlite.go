package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"pav-go/internal/model"
	"pav-go/internal/pav"
	"pav-go/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// arrivalColumns is the full column list in scanArrival order.
const arrivalColumns = `id, vehicleId, centerId, agentId, operationType, scanTimestamp,
	agentLatitude, agentLongitude, agentAccuracy, vehicleGPSDevice,
	status, processingStartTime, processingEndTime,
	exitType, exitDestination, exitTime,
	exitAgentLatitude, exitAgentLongitude, exitAgentAccuracy, exitVehicleGPSDevice,
	synced, createdAt`

// SQLiteStore implements the RecordStore interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string

	// Schema state is held per instance rather than in package globals so
	// tests can run against fresh stores. The mutex serializes EnsureSchema;
	// the flag makes repeat calls no-ops.
	schemaMu    sync.Mutex
	schemaReady bool

	logger pav.Logger
}

// NewSQLiteStore creates a new SQLite-backed record store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string, logger pav.Logger) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, path, logger), nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB, path string, logger pav.Logger) *SQLiteStore {
	if logger == nil {
		logger = pav.NewNopLogger()
	}
	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
	}
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// EnsureSchema brings the database schema up to date: the versioned
// baseline first, then the tolerant additive upgrade for the
// status-tracking columns. Idempotent and safe to call from concurrent
// goroutines; only the first call per instance does any work.
func (s *SQLiteStore) EnsureSchema() error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schemaReady {
		return nil
	}

	if err := migrations.MigrateUp(s.db); err != nil {
		return fmt.Errorf("applying baseline schema: %w", err)
	}

	if err := s.upgradeArrivalsTable(); err != nil {
		return fmt.Errorf("upgrading arrivals table: %w", err)
	}

	s.schemaReady = true
	return nil
}

// Arrival operations

func (s *SQLiteStore) CreateArrival(rec *model.ArrivalRecord) error {
	_, err := s.db.Exec(`INSERT INTO arrivals (`+arrivalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.VehicleID,
		rec.CenterID,
		nullString(rec.AgentID),
		string(rec.OperationType),
		rec.ScanTimestamp,
		rec.AgentLatitude,
		rec.AgentLongitude,
		nullFloat(rec.AgentAccuracy),
		nullString(rec.VehicleGPSDevice),
		string(rec.Status),
		nullInt(rec.ProcessingStartTime),
		nullInt(rec.ProcessingEndTime),
		nullString(string(rec.ExitType)),
		nullString(rec.ExitDestination),
		nullInt(rec.ExitTime),
		nullFloat(rec.ExitAgentLatitude),
		nullFloat(rec.ExitAgentLongitude),
		nullFloat(rec.ExitAgentAccuracy),
		nullString(rec.ExitVehicleGPSDevice),
		boolToInt(rec.Synced),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting arrival: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAll() ([]*model.ArrivalRecord, error) {
	rows, err := s.db.Query(`SELECT ` + arrivalColumns + ` FROM arrivals ORDER BY createdAt DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing arrivals: %w", err)
	}
	defer rows.Close()
	return collectArrivals(rows)
}

func (s *SQLiteStore) GetByID(id string) (*model.ArrivalRecord, error) {
	row := s.db.QueryRow(`SELECT `+arrivalColumns+` FROM arrivals WHERE id = ?`, id)
	rec, err := scanArrival(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pav.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding arrival by id: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetUnsynced() ([]*model.ArrivalRecord, error) {
	rows, err := s.db.Query(`SELECT ` + arrivalColumns + ` FROM arrivals WHERE synced = 0 ORDER BY createdAt ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing unsynced arrivals: %w", err)
	}
	defer rows.Close()
	return collectArrivals(rows)
}

func (s *SQLiteStore) FindReadyToExit(vehicleID string) (*model.ArrivalRecord, error) {
	row := s.db.QueryRow(`SELECT `+arrivalColumns+` FROM arrivals
		WHERE vehicleId = ? AND status = ? ORDER BY createdAt DESC LIMIT 1`,
		vehicleID, string(model.StatusReadyToExit))
	rec, err := scanArrival(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding open visit: %w", err)
	}
	return rec, nil
}

// UpdateStatus advances a record's status. The current status is read and
// checked inside the same transaction as the write, so a concurrent
// updater cannot sneak a record past the state machine.
func (s *SQLiteStore) UpdateStatus(id string, status model.Status, processingEndTime *int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentStatus(tx, id)
	if err != nil {
		return err
	}
	if !model.CanTransition(current, status) {
		return &pav.InvalidTransitionError{ID: id, From: current, To: status}
	}

	if processingEndTime != nil {
		_, err = tx.Exec(`UPDATE arrivals SET status = ?, processingEndTime = ? WHERE id = ?`,
			string(status), *processingEndTime, id)
	} else {
		_, err = tx.Exec(`UPDATE arrivals SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RecordExit writes the exit facts and the exited status in one UPDATE, so
// no reader can observe an exited record with missing exit fields.
func (s *SQLiteStore) RecordExit(id string, exit model.ExitFacts) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentStatus(tx, id)
	if err != nil {
		return err
	}
	if !model.CanTransition(current, model.StatusExited) {
		return &pav.InvalidTransitionError{ID: id, From: current, To: model.StatusExited}
	}

	_, err = tx.Exec(`UPDATE arrivals SET
			status = ?,
			exitType = ?,
			exitDestination = ?,
			exitTime = ?,
			exitAgentLatitude = ?,
			exitAgentLongitude = ?,
			exitAgentAccuracy = ?,
			exitVehicleGPSDevice = ?
		WHERE id = ?`,
		string(model.StatusExited),
		string(exit.ExitType),
		nullString(exit.ExitDestination),
		exit.ExitTime,
		exit.ExitAgentLatitude,
		exit.ExitAgentLongitude,
		nullFloat(exit.ExitAgentAccuracy),
		nullString(exit.ExitVehicleGPSDevice),
		id,
	)
	if err != nil {
		return fmt.Errorf("recording exit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkSynced flips the synced flag. Re-marking an already-synced record is
// a no-op; the flag is never reset to false.
func (s *SQLiteStore) MarkSynced(id string) error {
	res, err := s.db.Exec(`UPDATE arrivals SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking synced: %w", err)
	}
	if n == 0 {
		return pav.ErrNotFound
	}
	return nil
}

// currentStatus reads a record's status inside tx. Rows predating the
// additive upgrade carry NULL status and count as arrived.
func currentStatus(tx *sql.Tx, id string) (model.Status, error) {
	var status sql.NullString
	err := tx.QueryRow(`SELECT status FROM arrivals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", pav.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading current status: %w", err)
	}
	if !status.Valid || status.String == "" {
		return model.StatusArrived, nil
	}
	return model.Status(status.String), nil
}

// Settings operations

func (s *SQLiteStore) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Row scanning

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArrival(row rowScanner) (*model.ArrivalRecord, error) {
	var rec model.ArrivalRecord
	var agentID, gpsDevice, status, exitType, exitDest, exitGPSDevice sql.NullString
	var accuracy, exitLat, exitLon, exitAcc sql.NullFloat64
	var procStart, procEnd, exitTime sql.NullInt64
	var synced int64

	err := row.Scan(
		&rec.ID, &rec.VehicleID, &rec.CenterID, &agentID, &rec.OperationType, &rec.ScanTimestamp,
		&rec.AgentLatitude, &rec.AgentLongitude, &accuracy, &gpsDevice,
		&status, &procStart, &procEnd,
		&exitType, &exitDest, &exitTime,
		&exitLat, &exitLon, &exitAcc, &exitGPSDevice,
		&synced, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.AgentID = agentID.String
	rec.AgentAccuracy = floatPtr(accuracy)
	rec.VehicleGPSDevice = gpsDevice.String
	rec.Status = model.Status(status.String)
	if rec.Status == "" {
		rec.Status = model.StatusArrived
	}
	rec.ProcessingStartTime = intPtr(procStart)
	rec.ProcessingEndTime = intPtr(procEnd)
	rec.ExitType = model.ExitType(exitType.String)
	rec.ExitDestination = exitDest.String
	rec.ExitTime = intPtr(exitTime)
	rec.ExitAgentLatitude = floatPtr(exitLat)
	rec.ExitAgentLongitude = floatPtr(exitLon)
	rec.ExitAgentAccuracy = floatPtr(exitAcc)
	rec.ExitVehicleGPSDevice = exitGPSDevice.String
	rec.Synced = synced != 0
	return &rec, nil
}

func collectArrivals(rows *sql.Rows) ([]*model.ArrivalRecord, error) {
	var recs []*model.ArrivalRecord
	for rows.Next() {
		rec, err := scanArrival(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning arrival row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating arrival rows: %w", err)
	}
	return recs, nil
}

// NULL helpers

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func intPtr(i sql.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Compile-time check that SQLiteStore implements the RecordStore interface
var _ pav.RecordStore = (*SQLiteStore)(nil)
