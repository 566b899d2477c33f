package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"tdi-telegram-bot/internal/alert"
	"tdi-telegram-bot/internal/database"
)

const (
	namespace = "tdi"
	subsystem = "webhook_bot"

	EndpointWebhook = "webhook"
	EndpointTest    = "test"

	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"

	// OtherKind groups every signal type without a dedicated presentation.
	OtherKind = "other"
)

// BotMetrics holds the collectors shared by every request handler.
type BotMetrics struct {
	AlertsReceived   *prometheus.CounterVec
	PayloadErrors    prometheus.Counter
	Notifications    *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
}

// NewBotMetrics creates the collectors and registers them with reg.
func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		AlertsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "alerts_received_total",
				Help:      "The total number of parsed alerts by signal kind",
			},
			[]string{"kind"},
		),
		PayloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payload_errors_total",
			Help:      "The total number of webhook bodies that could not be parsed",
		}),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notifications_total",
				Help:      "The total number of Telegram delivery attempts",
			},
			[]string{"endpoint", "outcome"},
		),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent on a single Telegram sendMessage call",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.AlertsReceived, m.PayloadErrors, m.Notifications, m.DeliveryDuration)

	// known kinds are exported at 0 before the first alert arrives
	for _, kind := range alert.KnownKinds() {
		m.AlertsReceived.WithLabelValues(kind)
	}
	m.AlertsReceived.WithLabelValues(OtherKind)
	return m
}

// ObserveAlert counts a parsed alert. Pass known=false for kinds outside the
// presentation table so arbitrary input cannot grow the label set.
func (m *BotMetrics) ObserveAlert(kind string, known bool) {
	if !known {
		kind = OtherKind
	}
	m.AlertsReceived.WithLabelValues(kind).Inc()
}

// ObserveDelivery records one delivery attempt made on behalf of endpoint.
func (m *BotMetrics) ObserveDelivery(endpoint string, delivered bool, took time.Duration) {
	outcome := OutcomeFailed
	if delivered {
		outcome = OutcomeDelivered
	}
	m.Notifications.WithLabelValues(endpoint, outcome).Inc()
	m.DeliveryDuration.Observe(took.Seconds())
}

// persisted maps snapshot names to the counters worth keeping across restarts.
func (m *BotMetrics) persisted() map[string]prometheus.Collector {
	return map[string]prometheus.Collector{
		"alerts_received": m.AlertsReceived,
		"payload_errors":  m.PayloadErrors,
		"notifications":   m.Notifications,
	}
}

// Snapshot returns the current counter values in storable form.
func (m *BotMetrics) Snapshot() []database.Metric {
	var out []database.Metric
	for name, c := range m.persisted() {
		for _, s := range collect(c) {
			out = append(out, database.Metric{Name: name, Labels: s.labels, Value: s.value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out
}

// Restore adds stored values back onto freshly created counters.
// Unknown names and malformed label sets are skipped.
func (m *BotMetrics) Restore(stored []database.Metric) {
	collectors := m.persisted()
	for _, s := range stored {
		if s.Value <= 0 {
			continue
		}
		switch c := collectors[s.Name].(type) {
		case prometheus.Counter:
			c.Add(s.Value)
		case *prometheus.CounterVec:
			counter, err := c.GetMetricWith(decodeLabels(s.Labels))
			if err != nil {
				log.Warnf("Skipping stored metric %s[%s]: %v", s.Name, s.Labels, err)
				continue
			}
			counter.Add(s.Value)
		default:
			log.Warnf("Skipping unknown stored metric %s", s.Name)
		}
	}
}

type sample struct {
	labels string
	value  float64
}

func collect(c prometheus.Collector) []sample {
	metricChan := make(chan prometheus.Metric)
	go func() {
		c.Collect(metricChan)
		close(metricChan)
	}()

	var out []sample
	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read metric value: %v", err)
			continue
		}
		if metricProto.Counter == nil {
			continue
		}
		out = append(out, sample{
			labels: encodeLabels(metricProto.GetLabel()),
			value:  metricProto.Counter.GetValue(),
		})
	}
	return out
}

func encodeLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func decodeLabels(encoded string) prometheus.Labels {
	labels := prometheus.Labels{}
	if encoded == "" {
		return labels
	}
	for _, part := range strings.Split(encoded, ",") {
		name, value, _ := strings.Cut(part, "=")
		labels[name] = value
	}
	return labels
}
