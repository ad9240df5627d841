package store

import (
	"sync"
	"testing"

	"pav-go/internal/model"
)

// legacySchema is the arrivals table as the first field builds created it,
// before status tracking existed.
const legacySchema = `CREATE TABLE arrivals (
	id TEXT PRIMARY KEY,
	vehicleId TEXT NOT NULL,
	centerId TEXT NOT NULL,
	agentId TEXT,
	operationType TEXT NOT NULL,
	scanTimestamp INTEGER NOT NULL,
	agentLatitude REAL NOT NULL,
	agentLongitude REAL NOT NULL,
	agentAccuracy REAL,
	vehicleGPSDevice TEXT,
	synced INTEGER NOT NULL DEFAULT 0,
	createdAt INTEGER NOT NULL
)`

func TestEnsureSchemaUpgradesLegacyTable(t *testing.T) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}

	if _, err := db.Exec(legacySchema); err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO arrivals
		(id, vehicleId, centerId, agentId, operationType, scanTimestamp,
		 agentLatitude, agentLongitude, agentAccuracy, vehicleGPSDevice, synced, createdAt)
		VALUES ('old-1', 'VEH-1', 'CENTER-001', 'AGENT-001', 'loading', 1000,
		 48.85, 2.35, NULL, NULL, 0, 1000)`); err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}

	s := NewSQLiteStoreFromDB(db, ":memory:", nil)
	t.Cleanup(func() { s.Close() })

	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	got, err := s.GetByID("old-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != model.StatusArrived {
		t.Errorf("legacy row Status = %q, want %q", got.Status, model.StatusArrived)
	}
	if got.ProcessingStartTime == nil || *got.ProcessingStartTime != 1000 {
		t.Errorf("legacy row ProcessingStartTime = %v, want scan timestamp 1000", got.ProcessingStartTime)
	}
	if got.ExitTime != nil {
		t.Errorf("legacy row ExitTime = %v, want nil", got.ExitTime)
	}

	// New records work against the upgraded table.
	if err := s.CreateArrival(testRecord("new-1", "VEH-2", 2000)); err != nil {
		t.Errorf("CreateArrival() after upgrade error = %v", err)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateArrival(testRecord("v-1", "VEH-1", 1000)); err != nil {
		t.Fatalf("CreateArrival() error = %v", err)
	}

	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	if _, err := s.GetByID("v-1"); err != nil {
		t.Errorf("GetByID() after re-ensure error = %v", err)
	}
}

func TestEnsureSchemaConcurrent(t *testing.T) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	s := NewSQLiteStoreFromDB(db, ":memory:", nil)
	t.Cleanup(func() { s.Close() })

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.EnsureSchema()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("EnsureSchema() goroutine %d error = %v", i, err)
		}
	}

	if err := s.CreateArrival(testRecord("v-1", "VEH-1", 1000)); err != nil {
		t.Errorf("CreateArrival() error = %v", err)
	}
}
