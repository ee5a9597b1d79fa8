package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitkeeper/core/internal/adapters/repository"
	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/ports"
)

type brokenStore struct {
	ports.DocumentStore
}

func (brokenStore) Save(ctx context.Context, doc *entities.HabitDocument) error {
	return errors.New("read-only")
}

func TestInstrumentedStoreCountsOperations(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)
	store := InstrumentStore(repository.NewMemoryDocumentRepository(nil), m)

	doc := store.Load(ctx)
	require.NoError(t, store.Save(ctx, doc))
	_, err := store.Exists(ctx)
	require.NoError(t, err)
	_, err = store.Backup(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, store.HealthCheck(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("load", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("exists", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("backup", "ok")))
}

func TestInstrumentedStoreCountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)
	store := InstrumentStore(brokenStore{repository.NewMemoryDocumentRepository(nil)}, m)

	err := store.Save(context.Background(), entities.NewHabitDocument(time.Now()))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("save", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operations.WithLabelValues("save", "ok")))
}

func TestRegisterHabitGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterHabitGauges(reg, func(ctx context.Context) (*entities.Stats, error) {
		return &entities.Stats{TotalHabits: 3, CompletedToday: 2, TotalStreak: 36, SuccessRate: 40}, nil
	})

	expected := `
# HELP habitkeeper_habits_completed_today Number of habits marked completed today
# TYPE habitkeeper_habits_completed_today gauge
habitkeeper_habits_completed_today 2
# HELP habitkeeper_habits_success_rate Average streak against a 30 day window, in percent
# TYPE habitkeeper_habits_success_rate gauge
habitkeeper_habits_success_rate 40
# HELP habitkeeper_habits_total Number of tracked habits
# TYPE habitkeeper_habits_total gauge
habitkeeper_habits_total 3
# HELP habitkeeper_habits_total_streak Sum of all habit streaks
# TYPE habitkeeper_habits_total_streak gauge
habitkeeper_habits_total_streak 36
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))
}

func TestRegisterHabitGaugesReportZeroOnError(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterHabitGauges(reg, func(ctx context.Context) (*entities.Stats, error) {
		return nil, errors.New("unavailable")
	})

	count, err := testutil.GatherAndCount(reg, "habitkeeper_habits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP habitkeeper_habits_total Number of tracked habits
# TYPE habitkeeper_habits_total gauge
habitkeeper_habits_total 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "habitkeeper_habits_total"))
}
