package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leadsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_ingested_total",
			Help: "Raw records that made it through normalization, by resolution",
		},
		[]string{"source", "resolution"},
	)

	recordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_rejected_total",
			Help: "Raw records rejected during normalization",
		},
		[]string{"source", "reason"},
	)

	scanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_errors_total",
			Help: "Source scans that ended in error",
		},
		[]string{"source"},
	)

	actions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actions_total",
			Help: "Outward action attempts, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	paymentsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_received_total",
			Help: "Payment confirmations processed, by plan and result",
		},
		[]string{"plan", "result"},
	)

	deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_deliveries_total",
			Help: "Leads delivered to paid feed subscribers",
		},
	)
)

func LeadIngested(source, resolution string) { leadsIngested.WithLabelValues(source, resolution).Inc() }
func RecordRejected(source, reason string)   { recordsRejected.WithLabelValues(source, reason).Inc() }
func ScanError(source string)                { scanErrors.WithLabelValues(source).Inc() }
func Action(channel, outcome string)         { actions.WithLabelValues(channel, outcome).Inc() }
func PaymentReceived(plan, result string)    { paymentsReceived.WithLabelValues(plan, result).Inc() }
func Delivery()                              { deliveries.Inc() }
