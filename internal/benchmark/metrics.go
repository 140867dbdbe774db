package benchmark

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records snapshot timings for export in the Prometheus textfile
// format read by node_exporter's textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	snapshotDuration *prometheus.HistogramVec
	copyDuration     prometheus.Gauge
	snapshots        prometheus.Counter
	lastRun          prometheus.Gauge
}

// NewMetrics creates a Metrics with its own registry. Every series carries
// the source volume and region as constant labels.
func NewMetrics(volumeID, region string) *Metrics {
	labels := prometheus.Labels{"volume_id": volumeID, "region": region}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshotDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "snapprof",
			Name:        "snapshot_duration_seconds",
			Help:        "Time from CreateSnapshot until the snapshot reached the completed state.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(15, 2, 10),
		}, []string{"kind"}),
		copyDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "snapprof",
			Name:        "snapshot_copy_duration_seconds",
			Help:        "Duration of the most recent cross-region snapshot copy.",
			ConstLabels: labels,
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "snapprof",
			Name:        "snapshots_created_total",
			Help:        "Snapshots created by this run.",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "snapprof",
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the benchmark run finished.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.snapshotDuration, m.copyDuration, m.snapshots, m.lastRun)
	return m
}

// ObserveSnapshot records one completed source snapshot.
func (m *Metrics) ObserveSnapshot(d time.Duration) {
	m.snapshotDuration.WithLabelValues("source").Observe(d.Seconds())
	m.snapshots.Inc()
}

// ObserveCopy records the cross-region copy.
func (m *Metrics) ObserveCopy(d time.Duration) {
	m.snapshotDuration.WithLabelValues("copy").Observe(d.Seconds())
	m.copyDuration.Set(d.Seconds())
}

// WriteTextfile stamps the finish time and writes every series to path.
func (m *Metrics) WriteTextfile(path string, finished time.Time) error {
	m.lastRun.Set(float64(finished.Unix()))
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
