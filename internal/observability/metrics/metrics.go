package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles invoice run metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RecordsTotal       *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	DiscrepanciesTotal *prometheus.CounterVec
	LedgerErrorsTotal  *prometheus.CounterVec
	SinkErrorsTotal    *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_invoice_records_total",
				Help: "Finalized invoice records by provider and result",
			},
			[]string{"provider", "result"},
		),
		ExtractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "platform_invoice_extraction_duration_seconds",
			Help:    "Document extraction duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 45},
		}, []string{"extractor", "result"}),
		DiscrepanciesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_invoice_discrepancies_total",
				Help: "Extracted values that disagreed with a value already set",
			},
			[]string{"provider"},
		),
		LedgerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_invoice_ledger_errors_total",
				Help: "Processed ledger store failures by operation",
			},
			[]string{"op"},
		),
		SinkErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_invoice_sink_errors_total",
				Help: "Export sink write failures by sink",
			},
			[]string{"sink"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platform_invoice_run_duration_seconds",
			Help:    "Invoice run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_invoice_notifications_total",
				Help: "Run completion notifications by status",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(
		m.RecordsTotal,
		m.ExtractionDuration,
		m.DiscrepanciesTotal,
		m.LedgerErrorsTotal,
		m.SinkErrorsTotal,
		m.RunDuration,
		m.NotificationsTotal,
	)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRecord counts a finalized record by provider and outcome.
func (m *Metrics) ObserveRecord(provider, result string) {
	m.RecordsTotal.WithLabelValues(provider, result).Inc()
}

// ObserveExtraction records how long a document extraction took.
func (m *Metrics) ObserveExtraction(extractor, result string, elapsed time.Duration) {
	m.ExtractionDuration.WithLabelValues(extractor, result).Observe(elapsed.Seconds())
}

// ObserveSinkError counts a failed sink write.
func (m *Metrics) ObserveSinkError(sink string) {
	m.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// ObserveDiscrepancy counts an extracted value that disagreed with the record.
func (m *Metrics) ObserveDiscrepancy(provider string) {
	m.DiscrepanciesTotal.WithLabelValues(provider).Inc()
}

// ObserveLedgerError counts a swallowed ledger store failure by operation.
func (m *Metrics) ObserveLedgerError(op string) {
	m.LedgerErrorsTotal.WithLabelValues(op).Inc()
}

// ObserveRun records the duration of a whole run.
func (m *Metrics) ObserveRun(elapsed time.Duration) {
	m.RunDuration.Observe(elapsed.Seconds())
}

// ObserveNotification counts run notifications by delivery status.
func (m *Metrics) ObserveNotification(status string) {
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
