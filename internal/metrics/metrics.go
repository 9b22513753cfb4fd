// Package metrics provides Prometheus metrics for sf transfers.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Transfer directions and roles used as label values
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"

	RoleSender   = "sender"
	RoleReceiver = "receiver"
)

var (
	bytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sf_bytes_total",
			Help: "File body bytes moved over the transfer stream",
		},
		[]string{"direction"},
	)

	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sf_files_total",
			Help: "Files completely sent or received",
		},
		[]string{"direction"},
	)

	discoveryBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sf_discovery_broadcasts_total",
			Help: "Discovery datagrams broadcast by the receiver",
		},
	)

	transferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sf_transfer_duration_seconds",
			Help:    "Duration of completed transfer sessions",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"role"},
	)

	transferErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sf_transfer_errors_total",
			Help: "Transfer sessions aborted by an error",
		},
		[]string{"role"},
	)
)

// RecordBytes adds n body bytes for the given direction.
func RecordBytes(direction string, n int) {
	bytesTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordFile counts one completed file.
func RecordFile(direction string) {
	filesTotal.WithLabelValues(direction).Inc()
}

// RecordBroadcast counts one discovery datagram.
func RecordBroadcast() {
	discoveryBroadcastsTotal.Inc()
}

// ObserveTransfer records the duration of a successful session.
func ObserveTransfer(role string, d time.Duration) {
	transferDuration.WithLabelValues(role).Observe(d.Seconds())
}

// RecordError counts one failed session.
func RecordError(role string) {
	transferErrorsTotal.WithLabelValues(role).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
