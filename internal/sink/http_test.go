package sink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pav-go/internal/model"
	"pav-go/internal/pav"
)

func testPayload() *model.SyncPayload {
	return model.NewSyncPayload(&model.ArrivalRecord{
		ID:             "rec-1",
		VehicleID:      "VEH-1",
		CenterID:       "CENTER-001",
		OperationType:  model.OperationLoading,
		ScanTimestamp:  1000,
		AgentLatitude:  48.85,
		AgentLongitude: 2.35,
		Status:         model.StatusInProcessing,
		CreatedAt:      1000,
	})
}

func TestHTTPSinkSend(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		var got model.SyncPayload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		s := NewHTTPSink(srv.URL)
		if err := s.Send(context.Background(), testPayload()); err != nil {
			t.Fatalf("Send() error = %v", err)
		}

		if got.ID != "rec-1" {
			t.Errorf("posted ID = %q, want %q", got.ID, "rec-1")
		}
		if got.AgentGPS.Latitude != 48.85 {
			t.Errorf("posted AgentGPS.Latitude = %f, want 48.85", got.AgentGPS.Latitude)
		}
	})

	t.Run("client error is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad payload", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		err := NewHTTPSink(srv.URL).Send(context.Background(), testPayload())
		var de *pav.DeliveryError
		if !errors.As(err, &de) {
			t.Fatalf("Send() error = %v, want DeliveryError", err)
		}
		if de.Retryable {
			t.Error("4xx classified retryable, want fatal")
		}
	})

	t.Run("server error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := NewHTTPSink(srv.URL).Send(context.Background(), testPayload())
		var de *pav.DeliveryError
		if !errors.As(err, &de) {
			t.Fatalf("Send() error = %v, want DeliveryError", err)
		}
		if !de.Retryable {
			t.Error("5xx classified fatal, want retryable")
		}
	})

	t.Run("transport error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		err := NewHTTPSink(srv.URL).Send(context.Background(), testPayload())
		if !pav.Retryable(err) {
			t.Errorf("transport error classified fatal: %v", err)
		}
	})
}

func TestMemorySinkScriptedFailure(t *testing.T) {
	s := NewMemorySink()
	s.FailWith("rec-1", errors.New("boom"))

	if err := s.Send(context.Background(), testPayload()); err == nil {
		t.Fatal("Send() error = nil, want scripted failure")
	}
	if len(s.Accepted()) != 0 {
		t.Errorf("Accepted() has %d payloads, want 0", len(s.Accepted()))
	}

	other := testPayload()
	other.ID = "rec-2"
	if err := s.Send(context.Background(), other); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(s.Accepted()) != 1 {
		t.Errorf("Accepted() has %d payloads, want 1", len(s.Accepted()))
	}
}
