package command

import "github.com/prometheus/client_golang/prometheus"

// Ingest results
const (
	resultStored      = "stored"
	resultStoreFailed = "store_failed"
	notifySent        = "sent"
	notifyFailed      = "failed"
)

// IngestMetrics holds the Prometheus collectors for the ingest pipeline
type IngestMetrics struct {
	ingested      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewIngestMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchase_ingest_total",
				Help: "Total number of purchase events processed, by result",
			},
			[]string{"result"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchase_notifications_total",
				Help: "Total number of operator notifications attempted, by result",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "purchase_ingest_duration_seconds",
				Help:    "Duration of purchase ingestion in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.ingested, m.notifications, m.duration)
	}
	return m
}
