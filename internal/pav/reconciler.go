package pav

import (
	"context"

	"pav-go/internal/model"
)

// Reconciler pushes locally-unsynced records to the remote collector.
// Delivery is best-effort and at-least-once: a record that fails to send
// simply stays unsynced and is rediscovered by the next pass. Reconcile
// never returns an error; failures are contained and logged.
type Reconciler struct {
	store  RecordStore
	sink   RemoteSink
	net    Reachability
	logger Logger
}

// NewReconciler creates a Reconciler with the provided dependencies.
func NewReconciler(store RecordStore, sink RemoteSink, net Reachability, logger Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		sink:   sink,
		net:    net,
		logger: logger,
	}
}

// Reconcile delivers unsynced records to the collector in createdAt order
// and marks each acknowledged record synced. Returns the number of records
// synced this pass. Offline, the pass is a no-op returning 0: nothing is
// read, nothing is sent.
func (r *Reconciler) Reconcile(ctx context.Context) int {
	if !r.net.Online(ctx) {
		r.logger.Debug("skipping sync, offline")
		return 0
	}

	pending, err := r.store.GetUnsynced()
	if err != nil {
		r.logger.Error("listing unsynced records", "error", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	synced := 0
	for _, rec := range pending {
		if err := r.sink.Send(ctx, model.NewSyncPayload(rec)); err != nil {
			// Per-record containment: the rest of the batch still runs.
			if Retryable(err) {
				r.logger.Warn("delivery failed, will retry next pass", "id", rec.ID, "error", err)
			} else {
				r.logger.Error("collector rejected record", "id", rec.ID, "error", err)
			}
			continue
		}

		if err := r.store.MarkSynced(rec.ID); err != nil {
			r.logger.Error("marking record synced", "id", rec.ID, "error", err)
			continue
		}
		synced++
	}

	if synced > 0 {
		r.logger.Info("sync complete", "synced", synced, "pending", len(pending)-synced)
	}
	return synced
}
