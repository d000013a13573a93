package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "autostrom_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	readingAppends *prometheus.CounterVec
	readingDeletes *prometheus.CounterVec

	invoiceRenderLatency *prometheus.HistogramVec

	mailDeliveries *prometheus.CounterVec
	archiveUploads *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
)

// Init registers the service metrics.
func Init() {
	registerOnce.Do(func() {
		readingAppends = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_appends_total",
				Help: "Total reading append attempts by result",
			},
			[]string{"result"},
		)
		readingDeletes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_deletes_total",
				Help: "Total delete-last attempts by result",
			},
			[]string{"result"},
		)
		invoiceRenderLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_render_latency_seconds",
				Help:    "Invoice PDF render latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		mailDeliveries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mail_deliveries_total",
				Help: "Total invoice mail deliveries by result",
			},
			[]string{"result"},
		)
		archiveUploads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "archive_uploads_total",
				Help: "Total document archive uploads by result",
			},
			[]string{"result"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method and status",
			},
			[]string{"method", "status"},
		)

		prometheus.MustRegister(
			readingAppends,
			readingDeletes,
			invoiceRenderLatency,
			mailDeliveries,
			archiveUploads,
			httpRequests,
		)
	})
}

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// IncReadingAppend counts an append attempt.
func IncReadingAppend(err error) {
	if readingAppends != nil {
		readingAppends.WithLabelValues(resultLabel(err)).Inc()
	}
}

// IncReadingDelete counts a delete-last attempt.
func IncReadingDelete(err error) {
	if readingDeletes != nil {
		readingDeletes.WithLabelValues(resultLabel(err)).Inc()
	}
}

// ObserveInvoiceRender records PDF render duration and result.
func ObserveInvoiceRender(err error, duration time.Duration) {
	if invoiceRenderLatency != nil {
		invoiceRenderLatency.WithLabelValues(resultLabel(err)).Observe(duration.Seconds())
	}
}

// IncMailDelivery counts an invoice mail attempt.
func IncMailDelivery(err error) {
	if mailDeliveries != nil {
		mailDeliveries.WithLabelValues(resultLabel(err)).Inc()
	}
}

// IncArchiveUpload counts a document archive upload attempt.
func IncArchiveUpload(err error) {
	if archiveUploads != nil {
		archiveUploads.WithLabelValues(resultLabel(err)).Inc()
	}
}

// IncHTTPRequest counts a served HTTP request.
func IncHTTPRequest(method, status string) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, status).Inc()
	}
}
