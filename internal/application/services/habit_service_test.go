package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/habitkeeper/core/internal/adapters/repository"
	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/infrastructure/logger"
	"github.com/habitkeeper/core/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// sequentialIDs hands out 1, 2, 3, ...
func sequentialIDs() IDGenerator {
	var next int64
	return func() int64 {
		next++
		return next
	}
}

func newTestService(t *testing.T, store ports.DocumentStore) *HabitService {
	t.Helper()
	return NewHabitService(store, logger.NewNop(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	)
}

func newMemoryService(t *testing.T) (*HabitService, *repository.MemoryDocumentRepository) {
	t.Helper()
	store := repository.NewMemoryDocumentRepository(func() time.Time { return fixedNow })
	return newTestService(t, store), store
}

// failingStore wraps a store and fails every save
type failingStore struct {
	ports.DocumentStore
	saveErr error
	saves   int
}

func (s *failingStore) Save(ctx context.Context, doc *entities.HabitDocument) error {
	s.saves++
	return s.saveErr
}

func TestEnsureInitializedSeedsOnce(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	require.NoError(t, svc.EnsureInitialized(ctx))

	doc := store.Load(ctx)
	require.Len(t, doc.Habits, 2)
	assert.Equal(t, "Drink water", doc.Habits[0].Name)
	assert.True(t, doc.Habits[0].CompletedToday)
	assert.Equal(t, 7, doc.Habits[0].Streak)
	assert.Equal(t, "Exercise", doc.Habits[1].Name)
	assert.False(t, doc.Habits[1].CompletedToday)
	assert.Equal(t, 5, doc.Habits[1].Streak)
	assert.NotEqual(t, doc.Habits[0].ID, doc.Habits[1].ID)
	assert.Empty(t, doc.Completions)
	assert.Equal(t, entities.DocumentVersion, doc.Version)

	_, err := svc.DeleteHabit(ctx, doc.Habits[0].ID)
	require.NoError(t, err)

	require.NoError(t, svc.EnsureInitialized(ctx))
	assert.Len(t, store.Load(ctx).Habits, 1, "existing document must not be reseeded")
}

func TestCreateHabitAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	habit, total, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "Read"})
	require.NoError(t, err)

	want := &entities.Habit{
		ID:        1,
		Name:      "Read",
		Frequency: entities.DefaultFrequency,
		Time:      entities.DefaultTime,
		CreatedAt: fixedNow,
	}
	if diff := cmp.Diff(want, habit); diff != "" {
		t.Fatalf("created habit mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, total)

	habit2, total, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{
		Name:        "Stretch",
		Description: "10 minutes",
		Frequency:   "weekly",
		Time:        "morning",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "weekly", habit2.Frequency)
	assert.Equal(t, "morning", habit2.Time)
	assert.Len(t, store.Load(ctx).Habits, 2)
}

func TestCreateHabitRequiresName(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	_, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Description: "no name"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrValidation))

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists, "rejected create must not write the document")
}

func TestToggleHabitSequence(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	habit, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "Meditate"})
	require.NoError(t, err)

	steps := []struct {
		completed bool
		streak    int
	}{
		{true, 1},
		{false, 0},
		{true, 1},
		{true, 2},
	}

	// The fourth step sets completedToday back to false through update first.
	for i, step := range steps {
		if i == 3 {
			_, err := svc.UpdateHabit(ctx, habit.ID, map[string]any{"completedToday": false})
			require.NoError(t, err)
		}
		got, err := svc.ToggleHabit(ctx, habit.ID)
		require.NoError(t, err)
		assert.Equal(t, step.completed, got.CompletedToday, "step %d", i)
		assert.Equal(t, step.streak, got.Streak, "step %d", i)
	}
}

func TestToggleNeverDropsStreakBelowZero(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	habit, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "Journal"})
	require.NoError(t, err)
	_, err = svc.UpdateHabit(ctx, habit.ID, map[string]any{"completedToday": true})
	require.NoError(t, err)

	got, err := svc.ToggleHabit(ctx, habit.ID)
	require.NoError(t, err)
	assert.False(t, got.CompletedToday)
	assert.Equal(t, 0, got.Streak)
}

func TestToggleUnknownHabit(t *testing.T) {
	svc, _ := newMemoryService(t)

	_, err := svc.ToggleHabit(context.Background(), 42)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
}

func TestUpdateHabitAllowList(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	habit, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "Walk"})
	require.NoError(t, err)

	got, err := svc.UpdateHabit(ctx, habit.ID, map[string]any{
		"name":      "Long walk",
		"streak":    float64(4),
		"id":        float64(999),
		"createdAt": "2001-01-01T00:00:00Z",
		"color":     "blue",
	})
	require.NoError(t, err)

	assert.Equal(t, habit.ID, got.ID)
	assert.Equal(t, "Long walk", got.Name)
	assert.Equal(t, 4, got.Streak)
	assert.Equal(t, fixedNow, got.CreatedAt)
	assert.Equal(t, entities.DefaultFrequency, got.Frequency)

	stored := store.Load(ctx).Habits[0]
	if diff := cmp.Diff(*got, stored); diff != "" {
		t.Fatalf("stored habit mismatch (-returned +stored):\n%s", diff)
	}
}

func TestUpdateHabitEmptyBodyIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	habit, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "Floss"})
	require.NoError(t, err)

	got, err := svc.UpdateHabit(ctx, habit.ID, map[string]any{"unknown": true, "name": nil})
	require.NoError(t, err)
	if diff := cmp.Diff(habit, got); diff != "" {
		t.Fatalf("habit changed (-want +got):\n%s", diff)
	}
}

func TestUpdateHabitRejectsInvalidValues(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	habit, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "Run"})
	require.NoError(t, err)

	cases := map[string]map[string]any{
		"negative streak":    {"streak": float64(-1)},
		"fractional streak":  {"streak": 1.5},
		"string streak":      {"streak": "3"},
		"empty name":         {"name": ""},
		"numeric name":       {"name": float64(7)},
		"string completion":  {"completedToday": "yes"},
		"mixed valid+broken": {"description": "ok", "streak": float64(-4)},
	}

	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.UpdateHabit(ctx, habit.ID, fields)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrValidation))
		})
	}

	if diff := cmp.Diff(*habit, store.Load(ctx).Habits[0]); diff != "" {
		t.Fatalf("rejected updates changed the habit (-want +got):\n%s", diff)
	}
}

func TestUpdateUnknownHabit(t *testing.T) {
	svc, _ := newMemoryService(t)

	_, err := svc.UpdateHabit(context.Background(), 7, map[string]any{"name": "x"})
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	_, err = svc.UpdateHabit(context.Background(), 7, map[string]any{"streak": "bad"})
	assert.True(t, errors.Is(err, entities.ErrNotFound), "missing habit wins over a malformed field")
}

func TestDeleteHabit(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	first, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "A"})
	require.NoError(t, err)
	second, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "B"})
	require.NoError(t, err)

	total, err := svc.DeleteHabit(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = svc.DeleteHabit(ctx, first.ID)
	assert.True(t, errors.Is(err, entities.ErrNotFound))

	doc := store.Load(ctx)
	require.Len(t, doc.Habits, 1)
	assert.Equal(t, second.ID, doc.Habits[0].ID)
}

func TestStats(t *testing.T) {
	cases := []struct {
		name    string
		streaks []int
		done    []bool
		want    entities.Stats
	}{
		{
			name: "empty",
			want: entities.Stats{},
		},
		{
			name:    "full window",
			streaks: []int{30},
			done:    []bool{true},
			want:    entities.Stats{TotalHabits: 1, CompletedToday: 1, TotalStreak: 30, SuccessRate: 100},
		},
		{
			name:    "capped at 100",
			streaks: []int{60},
			done:    []bool{false},
			want:    entities.Stats{TotalHabits: 1, TotalStreak: 60, SuccessRate: 100},
		},
		{
			name:    "exact percentage",
			streaks: []int{7, 5},
			done:    []bool{true, false},
			want:    entities.Stats{TotalHabits: 2, CompletedToday: 1, TotalStreak: 12, SuccessRate: 20},
		},
		{
			name:    "rounds half up",
			streaks: []int{3, 0, 0, 0},
			done:    []bool{false, false, false, false},
			want:    entities.Stats{TotalHabits: 4, TotalStreak: 3, SuccessRate: 3},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := entities.NewHabitDocument(fixedNow)
			for i, streak := range tc.streaks {
				doc.Habits = append(doc.Habits, entities.Habit{ID: int64(i + 1), Streak: streak, CompletedToday: tc.done[i]})
			}
			tc.want.LastUpdated = fixedNow

			if diff := cmp.Diff(tc.want, computeStats(doc)); diff != "" {
				t.Fatalf("stats mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExportDocument(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)
	require.NoError(t, svc.EnsureInitialized(ctx))

	export, err := svc.ExportDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "habits-export-2026-03-14.json", export.Filename)
	assert.Len(t, export.Document.Habits, 2)
}

func TestBackupDocument(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)
	require.NoError(t, svc.EnsureInitialized(ctx))

	name, err := svc.BackupDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backup-1773480600000.json", name)
	assert.Equal(t, []string{name}, store.Backups())
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	base := repository.NewMemoryDocumentRepository(func() time.Time { return fixedNow })
	require.NoError(t, base.Save(ctx, &entities.HabitDocument{
		Habits: []entities.Habit{{ID: 1, Name: "Keep", Frequency: "daily", Time: "anytime"}},
	}))

	store := &failingStore{DocumentStore: base, saveErr: errors.New("disk full")}
	svc := newTestService(t, store)

	_, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "New"})
	assert.True(t, errors.Is(err, entities.ErrPersistence))

	_, err = svc.ToggleHabit(ctx, 1)
	assert.True(t, errors.Is(err, entities.ErrPersistence))

	_, err = svc.DeleteHabit(ctx, 1)
	assert.True(t, errors.Is(err, entities.ErrPersistence))

	_, err = svc.ImportDocument(ctx, []byte(`{"habits":[]}`))
	assert.True(t, errors.Is(err, entities.ErrPersistence))

	assert.Equal(t, 4, store.saves)
	assert.Len(t, base.Load(ctx).Habits, 1, "failed saves must leave the stored document alone")
}

func TestConcurrentCreatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CreateHabit(ctx, ports.CreateHabitRequest{Name: "parallel"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc := store.Load(ctx)
	require.Len(t, doc.Habits, workers)

	seen := make(map[int64]bool, workers)
	for _, h := range doc.Habits {
		assert.False(t, seen[h.ID], "duplicate id %d", h.ID)
		seen[h.ID] = true
	}
}

func TestListHabitsPassesCompletionsThrough(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t)

	raw := json.RawMessage(`{"2026-03-13":[1,2],"note":"kept as is"}`)
	require.NoError(t, store.Save(ctx, &entities.HabitDocument{
		Habits:      []entities.Habit{{ID: 1, Name: "A"}},
		Completions: map[string]json.RawMessage{"history": raw},
		Version:     entities.DocumentVersion,
	}))

	list, err := svc.ListHabits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.JSONEq(t, string(raw), string(list.Completions["history"]))
	assert.Equal(t, fixedNow, list.LastUpdated)
}
