package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/infrastructure/logger"
	"github.com/habitkeeper/core/internal/ports"
)

// HabitService handles habit-related operations.
// Every operation runs load, mutate and save under one lock so concurrent
// requests in this process never interleave on the document.
type HabitService struct {
	mu     sync.Mutex
	store  ports.DocumentStore
	newID  IDGenerator
	now    func() time.Time
	logger *logger.Logger
}

// Option configures a HabitService
type Option func(*HabitService)

// WithClock overrides the service clock
func WithClock(now func() time.Time) Option {
	return func(s *HabitService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the habit id generator
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *HabitService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewHabitService creates a new habit service
func NewHabitService(store ports.DocumentStore, logger *logger.Logger, opts ...Option) *HabitService {
	s := &HabitService{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.WithComponent("habit_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newID == nil {
		s.newID = NewTimestampIDGenerator(s.now)
	}
	return s
}

// EnsureInitialized seeds the store with example habits when no document exists yet
func (s *HabitService) EnsureInitialized(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.store.Exists(ctx)
	if err != nil {
		return persistenceError("check document", err)
	}
	if exists {
		s.logger.Infow("Habit document found")
		return nil
	}

	s.logger.Infow("Creating habit document with example habits")

	now := s.now()
	doc := entities.NewHabitDocument(now)
	doc.Habits = append(doc.Habits,
		entities.Habit{
			ID:             s.uniqueID(doc, nil),
			Name:           "Drink water",
			Description:    "2 liters a day",
			Frequency:      "daily",
			Time:           "morning",
			CompletedToday: true,
			Streak:         7,
			CreatedAt:      now,
		},
	)
	doc.Habits = append(doc.Habits,
		entities.Habit{
			ID:          s.uniqueID(doc, nil),
			Name:        "Exercise",
			Description: "30 minutes of activity",
			Frequency:   "daily",
			Time:        "evening",
			Streak:      5,
			CreatedAt:   now,
		},
	)

	if err := s.store.Save(ctx, doc); err != nil {
		return persistenceError("seed document", err)
	}
	return nil
}

// ListHabits returns every habit with the document metadata
func (s *HabitService) ListHabits(ctx context.Context) (*ports.HabitList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	return &ports.HabitList{
		Habits:      doc.Habits,
		Completions: doc.Completions,
		LastUpdated: doc.LastUpdated,
		Total:       len(doc.Habits),
	}, nil
}

// CreateHabit appends a new habit and returns it with the new total
func (s *HabitService) CreateHabit(ctx context.Context, req ports.CreateHabitRequest) (*entities.Habit, int, error) {
	if req.Name == "" {
		return nil, 0, fmt.Errorf("%w: habit name is required", entities.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)

	habit := entities.Habit{
		ID:          s.uniqueID(doc, nil),
		Name:        req.Name,
		Description: req.Description,
		Frequency:   orDefault(req.Frequency, entities.DefaultFrequency),
		Time:        orDefault(req.Time, entities.DefaultTime),
		CreatedAt:   s.now(),
	}
	doc.Habits = append(doc.Habits, habit)

	if err := s.store.Save(ctx, doc); err != nil {
		return nil, 0, persistenceError("failed to save habit", err)
	}

	s.logger.LogHabitAction("create", habit.ID, map[string]interface{}{"name": habit.Name})
	return &habit, len(doc.Habits), nil
}

// UpdateHabit applies the allow-listed fields present in fields to the habit.
// An unknown id is reported before any field is validated.
func (s *HabitService) UpdateHabit(ctx context.Context, id int64, fields map[string]any) (*entities.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	idx := doc.IndexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: id %d", entities.ErrNotFound, id)
	}

	patch, err := parseHabitPatch(fields)
	if err != nil {
		return nil, err
	}

	patch.apply(&doc.Habits[idx])

	if err := s.store.Save(ctx, doc); err != nil {
		return nil, persistenceError("failed to save habit", err)
	}

	habit := doc.Habits[idx]
	s.logger.LogHabitAction("update", id, map[string]interface{}{"fields": patch.fieldNames()})
	return &habit, nil
}

// ToggleHabit flips today's completion and adjusts the streak
func (s *HabitService) ToggleHabit(ctx context.Context, id int64) (*entities.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	idx := doc.IndexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: id %d", entities.ErrNotFound, id)
	}

	doc.Habits[idx].Toggle()

	if err := s.store.Save(ctx, doc); err != nil {
		return nil, persistenceError("failed to save habit", err)
	}

	habit := doc.Habits[idx]
	s.logger.LogHabitAction("toggle", id, map[string]interface{}{
		"completed_today": habit.CompletedToday,
		"streak":          habit.Streak,
	})
	return &habit, nil
}

// DeleteHabit removes the habit and returns the remaining total
func (s *HabitService) DeleteHabit(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	before := len(doc.Habits)

	kept := make([]entities.Habit, 0, before)
	for _, h := range doc.Habits {
		if h.ID != id {
			kept = append(kept, h)
		}
	}
	if len(kept) == before {
		return 0, fmt.Errorf("%w: id %d", entities.ErrNotFound, id)
	}
	doc.Habits = kept

	if err := s.store.Save(ctx, doc); err != nil {
		return 0, persistenceError("failed to delete habit", err)
	}

	s.logger.LogHabitAction("delete", id, nil)
	return len(doc.Habits), nil
}

// ExportDocument returns the current document and a dated download name
func (s *HabitService) ExportDocument(ctx context.Context) (*ports.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	return &ports.Export{
		Filename: fmt.Sprintf("habits-export-%s.json", s.now().Format("2006-01-02")),
		Document: doc,
	}, nil
}

// BackupDocument writes a timestamped side copy of the current document
func (s *HabitService) BackupDocument(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	name, err := s.store.Backup(ctx, doc)
	if err != nil {
		return "", persistenceError("failed to create backup", err)
	}

	s.logger.Infow("Backup created", "backup_file", name, "habits", len(doc.Habits))
	return name, nil
}

// Stats derives summary figures from the current document
func (s *HabitService) Stats(ctx context.Context) (*entities.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := computeStats(s.store.Load(ctx))
	return &stats, nil
}

func computeStats(doc *entities.HabitDocument) entities.Stats {
	stats := entities.Stats{
		TotalHabits: len(doc.Habits),
		LastUpdated: doc.LastUpdated,
	}
	for _, h := range doc.Habits {
		if h.CompletedToday {
			stats.CompletedToday++
		}
		stats.TotalStreak += h.Streak
	}

	if stats.TotalHabits > 0 {
		avg := float64(stats.TotalStreak) / float64(stats.TotalHabits)
		rate := int(math.Floor(avg/entities.SuccessWindow*100 + 0.5))
		if rate > 100 {
			rate = 100
		}
		stats.SuccessRate = rate
	}
	return stats
}

// uniqueID draws ids until one is free in doc and not in taken
func (s *HabitService) uniqueID(doc *entities.HabitDocument, taken map[int64]struct{}) int64 {
	for {
		id := s.newID()
		if doc.HasID(id) {
			continue
		}
		if _, dup := taken[id]; dup {
			continue
		}
		return id
	}
}

func persistenceError(action string, err error) error {
	if errors.Is(err, entities.ErrPersistence) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: %w: %w", action, entities.ErrPersistence, err)
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
