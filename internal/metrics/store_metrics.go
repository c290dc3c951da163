package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics содержит метрики витрины: корзина, оплата, HTTP.
type StoreMetrics struct {
	// Счётчики операций корзины
	cartMutations  *prometheus.CounterVec
	cartFetches    prometheus.Counter
	cartFetchSkips prometheus.Counter
	cartErrors     prometheus.Counter

	// Платёжный поток
	paymentsInitiated prometheus.Counter
	paymentsVerified  *prometheus.CounterVec
	paymentFlowActive prometheus.Gauge

	// HTTP-слой
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewStoreMetrics создаёт метрики витрины в DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return newStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "verdora_cart_mutations_total",
			Help: "Total number of cart mutations grouped by operation and result",
		}, []string{"operation", "result"}),
		cartFetches: registerCounter(registerer, prometheus.CounterOpts{
			Name: "verdora_cart_fetches_total",
			Help: "Total number of cart reads issued to storage",
		}),
		cartFetchSkips: registerCounter(registerer, prometheus.CounterOpts{
			Name: "verdora_cart_fetch_skips_total",
			Help: "Total number of cart reads skipped by the in-flight guard",
		}),
		cartErrors: registerCounter(registerer, prometheus.CounterOpts{
			Name: "verdora_cart_errors_total",
			Help: "Total number of failed cart operations",
		}),
		paymentsInitiated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "verdora_payments_initiated_total",
			Help: "Total number of payment flows started",
		}),
		paymentsVerified: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "verdora_payments_verified_total",
			Help: "Total number of payment verifications grouped by status",
		}, []string{"status"}),
		paymentFlowActive: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "verdora_payment_flows_active",
			Help: "Number of payment flows currently polling for window closure",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "verdora_http_requests_total",
			Help: "Total number of HTTP requests grouped by route and status code",
		}, []string{"route", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "verdora_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"route"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCartMutation увеличивает счётчик мутаций корзины.
func (m *StoreMetrics) RecordCartMutation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.cartErrors.Inc()
	}
	m.cartMutations.WithLabelValues(operation, result).Inc()
}

// RecordCartFetch увеличивает счётчик чтений корзины из хранилища.
func (m *StoreMetrics) RecordCartFetch() {
	m.cartFetches.Inc()
}

// RecordCartFetchSkipped увеличивает счётчик чтений, погашенных guard-ом.
func (m *StoreMetrics) RecordCartFetchSkipped() {
	m.cartFetchSkips.Inc()
}

// RecordPaymentInitiated увеличивает счётчик запущенных платёжных потоков.
func (m *StoreMetrics) RecordPaymentInitiated() {
	m.paymentsInitiated.Inc()
	m.paymentFlowActive.Inc()
}

// RecordPaymentFinished уменьшает количество активных платёжных потоков.
func (m *StoreMetrics) RecordPaymentFinished() {
	m.paymentFlowActive.Dec()
}

// RecordPaymentVerified увеличивает счётчик верификаций по статусу.
func (m *StoreMetrics) RecordPaymentVerified(status string) {
	m.paymentsVerified.WithLabelValues(status).Inc()
}

// RecordHTTPRequest фиксирует завершённый HTTP-запрос.
func (m *StoreMetrics) RecordHTTPRequest(route string, code int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, fmt.Sprintf("%d", code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
