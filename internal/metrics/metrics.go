package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the connector's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	messagesReceived  *prometheus.CounterVec
	messagesAcked     *prometheus.CounterVec
	messagesNacked    *prometheus.CounterVec
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pubsubnode",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operationsTotal: newCounterVec("operations_total",
			"Connector operations by resource, operation and outcome.",
			[]string{"resource", "operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pubsubnode",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of one item's operation.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"resource", "operation"}),
		messagesReceived: newCounterVec("messages_received_total",
			"Messages surfaced to workflows.", []string{"operation"}),
		messagesAcked: newCounterVec("messages_acknowledged_total",
			"Ack IDs submitted for acknowledgement.", []string{"operation"}),
		messagesNacked: newCounterVec("messages_nacked_total",
			"Messages handed back to the server after a streaming pull completed.", []string{"operation"}),
	}
	var err error
	if m.operationsTotal, err = register(reg, m.operationsTotal); err != nil {
		return nil, err
	}
	if m.operationDuration, err = register(reg, m.operationDuration); err != nil {
		return nil, err
	}
	if m.messagesReceived, err = register(reg, m.messagesReceived); err != nil {
		return nil, err
	}
	if m.messagesAcked, err = register(reg, m.messagesAcked); err != nil {
		return nil, err
	}
	if m.messagesNacked, err = register(reg, m.messagesNacked); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under the same name.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveOperation records one item's outcome and duration.
func (m *Metrics) ObserveOperation(resource, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operationsTotal.WithLabelValues(resource, operation, outcome).Inc()
	m.operationDuration.WithLabelValues(resource, operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) MessagesReceived(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.messagesReceived.WithLabelValues(operation).Add(float64(n))
}

func (m *Metrics) MessagesAcknowledged(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.messagesAcked.WithLabelValues(operation).Add(float64(n))
}

func (m *Metrics) MessagesNacked(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.messagesNacked.WithLabelValues(operation).Add(float64(n))
}
