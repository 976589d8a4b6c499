package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These are registered against the default Prometheus registry like the
// teacher's counters, but handoffd never serves them over HTTP (spec.md's
// non-goal of exposing a network API applies to the pipeline as a whole,
// not just the transfer protocol). No scrape endpoint is wired; Snapshot
// below hands the latest per-cycle values to in-process callers.
var (
	filesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "handoffd_files_discovered_total",
		Help: "Total number of files found in the buffer across all scans",
	})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "handoffd_scan_duration_seconds",
		Help:    "Duration of buffer scans",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "handoffd_transfer_duration_seconds",
		Help:    "Duration of a cycle's transfer phase (all porter workers)",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
	})

	transferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handoffd_transfer_bytes_total",
		Help: "Total bytes transferred to the endpoint, by outcome",
	}, []string{"status"})

	batchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handoffd_batches_total",
		Help: "Total transfer batches attempted, by outcome",
	}, []string{"status"})
)

// Metrics records pipeline measurements as Prometheus vectors and also
// keeps a lightweight in-process snapshot for logging, satisfying
// supervisor.Metrics.
// Metrics is only ever touched from the supervisor's own goroutine
// (ObserveScan/ObserveTransfer run inside Tick, never concurrently), so its
// snapshot fields need no locking.
type Metrics struct {
	state snapshotState
}

type snapshotState struct {
	filesFound      int64
	lastScanDur     time.Duration
	lastTransferDur time.Duration
}

// NewMetrics builds an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveScan records the outcome of one Finder pass.
func (m *Metrics) ObserveScan(found int, dur time.Duration) {
	filesDiscovered.Add(float64(found))
	scanDuration.Observe(dur.Seconds())
	m.state.filesFound = int64(found)
	m.state.lastScanDur = dur
}

// ObserveTransfer records the duration of one cycle's transfer phase.
func (m *Metrics) ObserveTransfer(dur time.Duration) {
	transferDuration.Observe(dur.Seconds())
	m.state.lastTransferDur = dur
}

// ObserveBatch records one completed transfer batch's size and status.
func (m *Metrics) ObserveBatch(status string, bytes int64) {
	transferBytes.WithLabelValues(status).Add(float64(bytes))
	batchOutcomes.WithLabelValues(status).Inc()
}

// Snapshot summarizes recent activity for a periodic debug log line.
type Snapshot struct {
	FilesFoundLastScan int64
	LastScanDuration   time.Duration
	LastTransferDuration time.Duration
}

// Snapshot returns the most recent per-cycle measurements.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		FilesFoundLastScan:   m.state.filesFound,
		LastScanDuration:     m.state.lastScanDur,
		LastTransferDuration: m.state.lastTransferDur,
	}
}
