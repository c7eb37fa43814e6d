package queue

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Metrics holds the Prometheus collectors of the job runtime.
type Metrics struct {
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inState  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dokusho_jobs_finished_total",
			Help: "Jobs that finished an attempt, by queue and outcome",
		}, []string{"queue", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dokusho_job_duration_seconds",
			Help:    "Wall time of one job attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"queue"}),
		inState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dokusho_jobs",
			Help: "Jobs currently stored, by queue and state",
		}, []string{"queue", "state"}),
	}
	reg.MustRegister(m.finished, m.duration, m.inState)
	return m
}

func (m *Metrics) observe(queue, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(queue, outcome).Inc()
	m.duration.WithLabelValues(queue).Observe(took.Seconds())
}

func (m *Metrics) setCounts(queue string, c domain.JobCounts) {
	if m == nil {
		return
	}
	m.inState.WithLabelValues(queue, string(domain.JobWaiting)).Set(float64(c.Waiting))
	m.inState.WithLabelValues(queue, string(domain.JobActive)).Set(float64(c.Active))
	m.inState.WithLabelValues(queue, string(domain.JobDelayed)).Set(float64(c.Delayed))
	m.inState.WithLabelValues(queue, string(domain.JobCompleted)).Set(float64(c.Completed))
	m.inState.WithLabelValues(queue, string(domain.JobFailed)).Set(float64(c.Failed))
	m.inState.WithLabelValues(queue, string(domain.JobWaitingChildren)).Set(float64(c.WaitingChildren))
}

// historyMinutes is the length of the rolling completed/failed series.
const historyMinutes = 60

// MetricPoint is one minute of the rolling series.
type MetricPoint struct {
	Minute    time.Time `json:"minute"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
}

type bucket struct {
	minute    int64
	completed int
	failed    int
}

// history keeps per-minute completed/failed counts for every queue.
type history struct {
	mu      sync.Mutex
	buckets map[string]*[historyMinutes]bucket
}

func newHistory() *history {
	return &history{buckets: make(map[string]*[historyMinutes]bucket)}
}

func (h *history) record(queue string, failed bool, at time.Time) {
	minute := at.Unix() / 60

	h.mu.Lock()
	defer h.mu.Unlock()

	ring, ok := h.buckets[queue]
	if !ok {
		ring = new([historyMinutes]bucket)
		h.buckets[queue] = ring
	}
	b := &ring[minute%historyMinutes]
	if b.minute != minute {
		*b = bucket{minute: minute}
	}
	if failed {
		b.failed++
	} else {
		b.completed++
	}
}

// series returns the last historyMinutes minutes ending at now, oldest first.
// Minutes without activity are reported as zero.
func (h *history) series(queue string, now time.Time) []MetricPoint {
	current := now.Unix() / 60
	out := make([]MetricPoint, historyMinutes)

	h.mu.Lock()
	defer h.mu.Unlock()

	ring := h.buckets[queue]
	for i := range historyMinutes {
		minute := current - int64(historyMinutes-1-i)
		p := MetricPoint{Minute: time.Unix(minute*60, 0).UTC()}
		if ring != nil {
			if b := ring[minute%historyMinutes]; b.minute == minute {
				p.Completed = b.completed
				p.Failed = b.failed
			}
		}
		out[i] = p
	}
	return out
}
