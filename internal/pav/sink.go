package pav

import (
	"context"
	"errors"
	"fmt"

	"pav-go/internal/model"
)

// RemoteSink delivers record payloads to the remote collector. Send either
// succeeds (the collector accepted the record) or fails with an error that
// classifies as retryable or fatal via DeliveryError. Delivery is
// at-least-once: the reconciler may re-send a payload the collector has
// already seen.
type RemoteSink interface {
	Send(ctx context.Context, payload *model.SyncPayload) error
}

// Reachability answers whether the device currently has a usable path to
// the collector. Reconciliation is skipped entirely while offline.
type Reachability interface {
	Online(ctx context.Context) bool
}

// DeliveryError classifies a failed send. Retryable failures (transport
// errors, collector 5xx) leave the record unsynced for the next pass;
// fatal failures (collector rejected the payload) do too, but are logged
// louder since retrying alone will not fix them.
type DeliveryError struct {
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("delivery failed (%s): %v", kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether err should be treated as transient. Errors
// that do not carry a DeliveryError classification default to retryable.
func Retryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return true
}
