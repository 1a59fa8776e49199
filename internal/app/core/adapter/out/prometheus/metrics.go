package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

const namespace = "ledger"

// Metrics 以 Prometheus 實作 usecase.Metrics
type Metrics struct {
	postings        *prometheus.CounterVec
	postingDuration *prometheus.HistogramVec
	retries         prometheus.Counter
	publishErrors   prometheus.Counter
}

// NewMetrics 在 reg 上註冊帳務指標，重複註冊會 panic
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		postings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "postings_total",
				Help:      "Total number of deposit/withdraw postings by result",
			},
			[]string{"type", "result"},
		),
		postingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "posting_duration_seconds",
				Help:      "Duration of ApplyTransaction including retries",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"type"},
		),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_retries_total",
			Help:      "Conditional writes retried after a concurrent balance change",
		}),
		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "TransactionCommitted events that failed to publish",
		}),
	}
}

func (m *Metrics) ObservePosting(tranType string, kind domain.Kind, seconds float64) {
	// 無效的 type 不當 label，避免任意字串撐爆 cardinality
	if !domain.TransactionType(tranType).Valid() {
		tranType = "invalid"
	}
	m.postings.WithLabelValues(tranType, string(kind)).Inc()
	m.postingDuration.WithLabelValues(tranType).Observe(seconds)
}

func (m *Metrics) IncRetry() {
	m.retries.Inc()
}

func (m *Metrics) IncPublishError() {
	m.publishErrors.Inc()
}

var _ usecase.Metrics = (*Metrics)(nil)
