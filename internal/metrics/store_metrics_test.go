package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewStoreMetrics(t *testing.T) {
	metrics := newStoreMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newStoreMetricsWithRegisterer should not return nil")
	}
	if metrics.cartMutations == nil {
		t.Error("cartMutations counter vec should not be nil")
	}
	if metrics.cartFetches == nil {
		t.Error("cartFetches counter should not be nil")
	}
	if metrics.paymentsInitiated == nil {
		t.Error("paymentsInitiated counter should not be nil")
	}
	if metrics.paymentFlowActive == nil {
		t.Error("paymentFlowActive gauge should not be nil")
	}
	if metrics.httpDuration == nil {
		t.Error("httpDuration histogram vec should not be nil")
	}
}

func TestRegisterTwiceReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newStoreMetricsWithRegisterer(reg)
	second := newStoreMetricsWithRegisterer(reg)

	if first.cartFetches != second.cartFetches {
		t.Error("re-registration must return the existing collector")
	}
}

func TestRecordCartMutation(t *testing.T) {
	metrics := newStoreMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordCartMutation("add", nil)
	metrics.RecordCartMutation("add", errors.New("boom"))
	metrics.RecordCartMutation("remove", nil)

	metric := &dto.Metric{}
	if err := metrics.cartMutations.WithLabelValues("add", "ok").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1 ok add, got %f", metric.Counter.GetValue())
	}

	errMetric := &dto.Metric{}
	if err := metrics.cartErrors.Write(errMetric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if errMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1 cart error, got %f", errMetric.Counter.GetValue())
	}
}

func TestPaymentFlowGauge(t *testing.T) {
	metrics := newStoreMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordPaymentInitiated()
	metrics.RecordPaymentInitiated()
	metrics.RecordPaymentFinished()

	gauge := &dto.Metric{}
	if err := metrics.paymentFlowActive.Write(gauge); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if gauge.Gauge.GetValue() != 1.0 {
		t.Errorf("expected 1 active flow, got %f", gauge.Gauge.GetValue())
	}

	counter := &dto.Metric{}
	if err := metrics.paymentsInitiated.Write(counter); err != nil {
		t.Fatalf("failed to write counter: %v", err)
	}
	if counter.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 initiated flows, got %f", counter.Counter.GetValue())
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	metrics := newStoreMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordHTTPRequest("/api/cart", 200, 15*time.Millisecond)
	metrics.RecordHTTPRequest("/api/cart", 200, 25*time.Millisecond)
	metrics.RecordHTTPRequest("/api/cart", 500, 5*time.Millisecond)

	metric := &dto.Metric{}
	if err := metrics.httpRequests.WithLabelValues("/api/cart", "200").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 ok requests, got %f", metric.Counter.GetValue())
	}

	hist := &dto.Metric{}
	observer := metrics.httpDuration.WithLabelValues("/api/cart")
	if err := observer.(prometheus.Histogram).Write(hist); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if hist.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", hist.Histogram.GetSampleCount())
	}
}
