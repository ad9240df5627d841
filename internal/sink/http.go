package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pav-go/internal/model"
	"pav-go/internal/pav"
)

// HTTPSink delivers payloads to the collector's HTTP endpoint: one POST
// per record, any 2xx response means the record was accepted. 4xx
// responses are fatal (the collector rejected the payload); transport
// errors and 5xx responses are retryable.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates an HTTPSink posting to the given endpoint URL.
func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send posts the payload as JSON.
func (h *HTTPSink) Send(ctx context.Context, payload *model.SyncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &pav.DeliveryError{Retryable: false, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return &pav.DeliveryError{Retryable: false, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return &pav.DeliveryError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &pav.DeliveryError{Retryable: false, Err: fmt.Errorf("collector returned %s", resp.Status)}
	default:
		return &pav.DeliveryError{Retryable: true, Err: fmt.Errorf("collector returned %s", resp.Status)}
	}
}

// Compile-time check that HTTPSink implements the RemoteSink interface
var _ pav.RemoteSink = (*HTTPSink)(nil)
