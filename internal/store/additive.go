package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// statusColumns are the status-tracking columns added after the original
// release. They are deliberately not versioned migrations: field databases
// written by intermediate builds already hold arbitrary subsets of them,
// and a duplicate-column ALTER would strand golang-migrate in a dirty
// state. The additive path tolerates re-application instead.
var statusColumns = []struct {
	name string
	typ  string
}{
	{"status", "TEXT DEFAULT 'arrived'"},
	{"processingStartTime", "INTEGER"},
	{"processingEndTime", "INTEGER"},
	{"exitType", "TEXT"},
	{"exitDestination", "TEXT"},
	{"exitTime", "INTEGER"},
	{"exitAgentLatitude", "REAL"},
	{"exitAgentLongitude", "REAL"},
	{"exitAgentAccuracy", "REAL"},
	{"exitVehicleGPSDevice", "TEXT"},
}

// upgradeArrivalsTable adds the status-tracking columns when the live
// schema predates them, then backfills status and processingStartTime for
// pre-existing rows. The "status" column is the sentinel: its presence
// means the upgrade already ran. Individual column failures are logged and
// skipped; a column missing because its ALTER failed surfaces as NULL
// downstream, which every reader tolerates.
func (s *SQLiteStore) upgradeArrivalsTable() error {
	hasStatus, err := s.columnExists("status")
	if err != nil {
		return fmt.Errorf("inspecting schema: %w", err)
	}
	if hasStatus {
		return nil
	}

	s.logger.Info("upgrading arrivals schema", "columns", len(statusColumns))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, col := range statusColumns {
		_, err := tx.Exec(fmt.Sprintf("ALTER TABLE arrivals ADD COLUMN %s %s", col.name, col.typ))
		if err != nil {
			// Non-fatal: the column usually already exists from a
			// concurrent or earlier partial upgrade.
			if !strings.Contains(err.Error(), "duplicate column") {
				s.logger.Warn("adding column", "column", col.name, "error", err)
			}
		}
	}

	// The ADD COLUMN default covers most rows; rows from a partial earlier
	// upgrade can still carry NULL or empty status.
	if _, err := tx.Exec(`UPDATE arrivals SET status = 'arrived'
		WHERE status IS NULL OR status = ''`); err != nil {
		s.logger.Warn("backfilling status", "error", err)
	}

	// Rows created before status tracking existed had their processing
	// start at scan time.
	if _, err := tx.Exec(`UPDATE arrivals SET processingStartTime = scanTimestamp
		WHERE processingStartTime IS NULL`); err != nil {
		s.logger.Warn("backfilling processing start", "error", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upgrade: %w", err)
	}

	s.logger.Info("arrivals schema upgrade complete")
	return nil
}

// columnExists inspects the table's creation SQL in sqlite_master for the
// given column name.
func (s *SQLiteStore) columnExists(column string) (bool, error) {
	var createSQL string
	err := s.db.QueryRow(
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'arrivals'`,
	).Scan(&createSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(createSQL), strings.ToLower(column)), nil
}
