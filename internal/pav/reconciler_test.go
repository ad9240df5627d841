package pav_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pav-go/internal/model"
	"pav-go/internal/netcheck"
	"pav-go/internal/pav"
	"pav-go/internal/store"
	"pav-go/internal/testutil"
)

func newReconcilerFixture(t *testing.T) (*pav.Service, *store.SQLiteStore, *testutil.StubClock) {
	t.Helper()

	st := testutil.NewTestStore(t)
	clock := testutil.FixedClock()
	svc := pav.NewService(st, pav.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	return svc, st, clock
}

func TestReconcileDeliversOldestFirst(t *testing.T) {
	svc, st, clock := newReconcilerFixture(t)
	sink := testutil.NewTestSink()

	for _, vehicle := range []string{"VEH-1", "VEH-2", "VEH-3"} {
		if _, err := svc.RecordArrival(loadingFacts(vehicle)); err != nil {
			t.Fatalf("RecordArrival(%s) error = %v", vehicle, err)
		}
		clock.Advance(time.Millisecond)
	}

	r := pav.NewReconciler(st, sink, netcheck.Static(true), pav.NewNopLogger())
	if got := r.Reconcile(context.Background()); got != 3 {
		t.Fatalf("Reconcile() = %d, want 3", got)
	}

	accepted := sink.Accepted()
	if len(accepted) != 3 {
		t.Fatalf("sink accepted %d payloads, want 3", len(accepted))
	}
	for i, wantVehicle := range []string{"VEH-1", "VEH-2", "VEH-3"} {
		if accepted[i].VehicleID != wantVehicle {
			t.Errorf("accepted[%d].VehicleID = %q, want %q", i, accepted[i].VehicleID, wantVehicle)
		}
	}

	pending, err := st.GetUnsynced()
	if err != nil {
		t.Fatalf("GetUnsynced() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d records still unsynced after full pass", len(pending))
	}

	// A second pass has nothing to do.
	if got := r.Reconcile(context.Background()); got != 0 {
		t.Errorf("second Reconcile() = %d, want 0", got)
	}
}

func TestReconcileOfflineIsNoOp(t *testing.T) {
	svc, st, _ := newReconcilerFixture(t)
	sink := testutil.NewTestSink()

	if _, err := svc.RecordArrival(loadingFacts("VEH-1")); err != nil {
		t.Fatalf("RecordArrival() error = %v", err)
	}

	r := pav.NewReconciler(st, sink, netcheck.Static(false), pav.NewNopLogger())
	if got := r.Reconcile(context.Background()); got != 0 {
		t.Errorf("Reconcile() offline = %d, want 0", got)
	}
	if len(sink.Accepted()) != 0 {
		t.Errorf("sink received %d payloads while offline", len(sink.Accepted()))
	}

	pending, _ := st.GetUnsynced()
	if len(pending) != 1 {
		t.Errorf("%d unsynced records, want 1 untouched", len(pending))
	}
}

func TestReconcileContinuesPastFailures(t *testing.T) {
	svc, st, clock := newReconcilerFixture(t)
	sink := testutil.NewTestSink()

	for _, vehicle := range []string{"VEH-1", "VEH-2", "VEH-3"} {
		if _, err := svc.RecordArrival(loadingFacts(vehicle)); err != nil {
			t.Fatalf("RecordArrival() error = %v", err)
		}
		clock.Advance(time.Millisecond)
	}

	// The middle record fails with a retryable error; the pass must still
	// deliver the other two.
	sink.FailWith("id-2", &pav.DeliveryError{Retryable: true, Err: errors.New("connection reset")})

	r := pav.NewReconciler(st, sink, netcheck.Static(true), pav.NewNopLogger())
	if got := r.Reconcile(context.Background()); got != 2 {
		t.Fatalf("Reconcile() = %d, want 2", got)
	}

	pending, err := st.GetUnsynced()
	if err != nil {
		t.Fatalf("GetUnsynced() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "id-2" {
		t.Fatalf("unsynced after pass = %v, want only id-2", pending)
	}
}

func TestReconcilePayloadContents(t *testing.T) {
	svc, st, _ := newReconcilerFixture(t)
	sink := testutil.NewTestSink()

	facts := loadingFacts("VEH-1")
	facts.VehicleGPSDevice = "GPS-9"
	rec, err := svc.RecordArrival(facts)
	if err != nil {
		t.Fatalf("RecordArrival() error = %v", err)
	}
	if err := svc.MarkReadyToExit(rec.ID, 0); err != nil {
		t.Fatalf("MarkReadyToExit() error = %v", err)
	}
	if err := svc.RecordExit(rec.ID, model.ExitFacts{
		ExitType:           model.ExitLoaded,
		ExitDestination:    "Lyon",
		ExitAgentLatitude:  45.76,
		ExitAgentLongitude: 4.83,
	}); err != nil {
		t.Fatalf("RecordExit() error = %v", err)
	}

	r := pav.NewReconciler(st, sink, netcheck.Static(true), pav.NewNopLogger())
	if got := r.Reconcile(context.Background()); got != 1 {
		t.Fatalf("Reconcile() = %d, want 1", got)
	}

	p := sink.Accepted()[0]
	if p.ID != rec.ID {
		t.Errorf("payload ID = %q, want %q", p.ID, rec.ID)
	}
	if p.AgentGPS.Latitude != rec.AgentLatitude || p.AgentGPS.Longitude != rec.AgentLongitude {
		t.Errorf("AgentGPS = %+v, want %f, %f", p.AgentGPS, rec.AgentLatitude, rec.AgentLongitude)
	}
	if p.AgentGPS.Timestamp != rec.ScanTimestamp {
		t.Errorf("AgentGPS.Timestamp = %d, want %d", p.AgentGPS.Timestamp, rec.ScanTimestamp)
	}
	if p.Status != model.StatusExited {
		t.Errorf("Status = %q, want %q", p.Status, model.StatusExited)
	}
	if p.ExitDestination != "Lyon" {
		t.Errorf("ExitDestination = %q, want %q", p.ExitDestination, "Lyon")
	}
	if p.ExitTime == nil {
		t.Error("ExitTime = nil, want set")
	}
}

func TestRetryableClassification(t *testing.T) {
	if !pav.Retryable(errors.New("plain error")) {
		t.Error("Retryable(plain error) = false, want true")
	}
	if !pav.Retryable(&pav.DeliveryError{Retryable: true, Err: errors.New("timeout")}) {
		t.Error("Retryable(retryable DeliveryError) = false, want true")
	}
	if pav.Retryable(&pav.DeliveryError{Retryable: false, Err: errors.New("bad payload")}) {
		t.Error("Retryable(fatal DeliveryError) = true, want false")
	}
}
