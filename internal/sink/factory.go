package sink

import (
	"context"
	"fmt"

	"pav-go/internal/config"
	"pav-go/internal/pav"
)

// NewSinkFromConfig creates a RemoteSink implementation based on the sink config type.
func NewSinkFromConfig(ctx context.Context, cfg config.SinkConfig) (pav.RemoteSink, error) {
	switch cfg.Type {
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http sink requires url to be set")
		}
		return NewHTTPSink(cfg.URL), nil
	case "s3":
		return NewS3Sink(ctx, cfg)
	case "mqtt":
		return NewMQTTSink(cfg)
	case "memory":
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}
