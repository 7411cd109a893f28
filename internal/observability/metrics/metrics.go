package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the settlement-side prometheus instruments.
type Metrics struct {
	payoutsInitiated  *prometheus.CounterVec
	payoutsCompleted  prometheus.Counter
	payoutsHeld       *prometheus.CounterVec
	payoutsBlocked    prometheus.Counter
	reservesReleased  prometheus.Counter
	transferRetries   prometheus.Counter
	auditWriteErrors  prometheus.Counter
	tinDecryptions    prometheus.Counter
	schedulerJobRuns  *prometheus.CounterVec
	schedulerDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		payoutsInitiated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearhouse_payouts_initiated_total",
			Help: "Payout records created, by outcome of the initial transfer.",
		}, []string{"outcome"}),
		payoutsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearhouse_payouts_completed_total",
			Help: "Payouts confirmed by the transfer executor.",
		}),
		payoutsHeld: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearhouse_payouts_held_total",
			Help: "Payouts moved to held, by reason.",
		}, []string{"reason"}),
		payoutsBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearhouse_payouts_compliance_blocked_total",
			Help: "Payout requests rejected by the compliance gate.",
		}),
		reservesReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearhouse_reserves_released_total",
			Help: "Reserve amounts released after the hold window.",
		}),
		transferRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearhouse_transfer_retries_total",
			Help: "Transfer attempts retried after a transient failure.",
		}),
		auditWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearhouse_audit_write_errors_total",
			Help: "Failed audit trail appends.",
		}),
		tinDecryptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearhouse_tin_decryptions_total",
			Help: "Audited TIN decrypt operations.",
		}),
		schedulerJobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearhouse_scheduler_job_runs_total",
			Help: "Scheduler job executions, by job and result.",
		}, []string{"job", "result"}),
		schedulerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clearhouse_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

func (m *Metrics) IncPayoutInitiated(outcome string) {
	if m == nil {
		return
	}
	m.payoutsInitiated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPayoutCompleted() {
	if m == nil {
		return
	}
	m.payoutsCompleted.Inc()
}

func (m *Metrics) IncPayoutHeld(reason string) {
	if m == nil {
		return
	}
	m.payoutsHeld.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncComplianceBlocked() {
	if m == nil {
		return
	}
	m.payoutsBlocked.Inc()
}

func (m *Metrics) IncReserveReleased() {
	if m == nil {
		return
	}
	m.reservesReleased.Inc()
}

func (m *Metrics) IncTransferRetry() {
	if m == nil {
		return
	}
	m.transferRetries.Inc()
}

func (m *Metrics) IncAuditWriteError() {
	if m == nil {
		return
	}
	m.auditWriteErrors.Inc()
}

func (m *Metrics) IncTINDecryption() {
	if m == nil {
		return
	}
	m.tinDecryptions.Inc()
}

func (m *Metrics) ObserveJobRun(job, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.schedulerJobRuns.WithLabelValues(job, result).Inc()
	m.schedulerDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}
