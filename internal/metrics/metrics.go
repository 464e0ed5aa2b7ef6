package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	api "go.opentelemetry.io/otel/metric"
)

const (
	subsystem           = "blobconn"
	credentialKindLabel = "credential_kind"
)

var (
	// openCount is a counter for connections opened.
	openCount metric.Int64Counter
	// closeCount is a counter for connections closed.
	closeCount metric.Int64Counter
	// liveCount is a gauge for currently open connections.
	liveCount metric.Int64UpDownCounter
	// connectLatency is the time taken to construct the SDK service client.
	connectLatency metric.Int64Histogram
)

func metricName(name string) string {
	return fmt.Sprintf("%s_%s", subsystem, name)
}

// Init initializes the connection metrics. This should only be called by
// blobconn.InitMetrics or tests.
func Init(meter api.Meter) error {
	var err error
	openCount, err = meter.Int64Counter(metricName("open_total"), api.WithDescription("total number of blob storage connections opened"))
	if err != nil {
		return err
	}
	closeCount, err = meter.Int64Counter(metricName("close_total"), api.WithDescription("total number of blob storage connections closed"))
	if err != nil {
		return err
	}
	liveCount, err = meter.Int64UpDownCounter(metricName("live_total"), api.WithDescription("number of currently open blob storage connections"))
	if err != nil {
		return err
	}
	connectLatency, err = meter.Int64Histogram(metricName("connect_ms"), api.WithDescription("time to construct the blob service client"))
	if err != nil {
		return err
	}
	return nil
}

// Opened records a successful connection open and its construction latency.
func Opened(ctx context.Context, kind string, latency time.Duration) {
	opt := api.WithAttributes(
		attribute.Key(credentialKindLabel).String(kind),
	)
	if openCount != nil {
		openCount.Add(ctx, 1, opt)
	}
	if liveCount != nil {
		liveCount.Add(ctx, 1, opt)
	}
	if connectLatency != nil {
		connectLatency.Record(ctx, latency.Milliseconds(), opt)
	}
}

// Closed records a connection close.
func Closed(ctx context.Context, kind string) {
	opt := api.WithAttributes(
		attribute.Key(credentialKindLabel).String(kind),
	)
	if closeCount != nil {
		closeCount.Add(ctx, 1, opt)
	}
	if liveCount != nil {
		liveCount.Add(ctx, -1, opt)
	}
}
