package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/ports"
)

const namespace = "habitkeeper"

// StoreMetrics holds the document store collectors
type StoreMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates and registers the store collectors
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of document store operations",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Document store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

func (m *StoreMetrics) observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// InstrumentedStore decorates a DocumentStore with Prometheus metrics
type InstrumentedStore struct {
	next    ports.DocumentStore
	metrics *StoreMetrics
}

// InstrumentStore wraps next so every call is counted and timed
func InstrumentStore(next ports.DocumentStore, m *StoreMetrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: m}
}

func (s *InstrumentedStore) Load(ctx context.Context) *entities.HabitDocument {
	start := time.Now()
	doc := s.next.Load(ctx)
	s.metrics.observe("load", start, nil)
	return doc
}

func (s *InstrumentedStore) Save(ctx context.Context, doc *entities.HabitDocument) error {
	start := time.Now()
	err := s.next.Save(ctx, doc)
	s.metrics.observe("save", start, err)
	return err
}

func (s *InstrumentedStore) Exists(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := s.next.Exists(ctx)
	s.metrics.observe("exists", start, err)
	return ok, err
}

func (s *InstrumentedStore) Backup(ctx context.Context, doc *entities.HabitDocument) (string, error) {
	start := time.Now()
	name, err := s.next.Backup(ctx, doc)
	s.metrics.observe("backup", start, err)
	return name, err
}

// HealthCheck delegates to the wrapped store when it supports health checks
func (s *InstrumentedStore) HealthCheck(ctx context.Context) error {
	if hc, ok := s.next.(ports.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// StatsFunc returns the current habit statistics
type StatsFunc func(ctx context.Context) (*entities.Stats, error)

// RegisterHabitGauges exposes the current habit statistics as gauges
func RegisterHabitGauges(reg prometheus.Registerer, stats StatsFunc) {
	read := func(pick func(*entities.Stats) int) func() float64 {
		return func() float64 {
			s, err := stats(context.Background())
			if err != nil {
				return 0
			}
			return float64(pick(s))
		}
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "habits_total",
			Help:      "Number of tracked habits",
		}, read(func(s *entities.Stats) int { return s.TotalHabits })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "habits_completed_today",
			Help:      "Number of habits marked completed today",
		}, read(func(s *entities.Stats) int { return s.CompletedToday })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "habits_total_streak",
			Help:      "Sum of all habit streaks",
		}, read(func(s *entities.Stats) int { return s.TotalStreak })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "habits_success_rate",
			Help:      "Average streak against a 30 day window, in percent",
		}, read(func(s *entities.Stats) int { return s.SuccessRate })),
	)
}
