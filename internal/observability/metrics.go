package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	ledgerOpCounter        *prometheus.CounterVec
	ledgerOpHistogram      *prometheus.HistogramVec
	ledgerImbalanceCounter *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	eventPublishCounter    *prometheus.CounterVec
	otpCounter             *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
	httpPanicCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerOpCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by kind and result code",
		}, []string{"operation", "result"})

		ledgerOpHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Ledger operation latency including lock waits",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of times balances diverged from the transaction log",
		}, []string{"currency"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Transaction events handed to the broker",
		}, []string{"result"})

		otpCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "One-time passcode verification outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		httpPanicCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_panics_recovered_total",
			Help: "Handler panics turned into 500 responses",
		}, []string{"route"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerOpCounter,
			ledgerOpHistogram,
			ledgerImbalanceCounter,
			idempotencyCounter,
			eventPublishCounter,
			otpCounter,
			workerRunCounter,
			httpPanicCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveLedgerOperation records one engine call. result is "ok" or the
// stable error code.
func ObserveLedgerOperation(operation, result string, duration time.Duration) {
	if ledgerOpCounter == nil {
		return
	}
	ledgerOpCounter.WithLabelValues(operation, result).Inc()
	ledgerOpHistogram.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementLedgerImbalance(currency string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(currency).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementEventPublish(result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(result).Inc()
}

func IncrementOTPVerification(result string) {
	if otpCounter == nil {
		return
	}
	otpCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementHTTPPanic(route string) {
	if httpPanicCounter == nil {
		return
	}
	httpPanicCounter.WithLabelValues(route).Inc()
}
