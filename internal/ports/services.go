package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/habitkeeper/core/internal/domain/entities"
)

// HabitService interface for habit management operations
type HabitService interface {
	EnsureInitialized(ctx context.Context) error
	ListHabits(ctx context.Context) (*HabitList, error)
	CreateHabit(ctx context.Context, req CreateHabitRequest) (*entities.Habit, int, error)
	UpdateHabit(ctx context.Context, id int64, fields map[string]any) (*entities.Habit, error)
	ToggleHabit(ctx context.Context, id int64) (*entities.Habit, error)
	DeleteHabit(ctx context.Context, id int64) (int, error)
	ImportDocument(ctx context.Context, payload []byte) (int, error)
	ExportDocument(ctx context.Context) (*Export, error)
	BackupDocument(ctx context.Context) (string, error)
	Stats(ctx context.Context) (*entities.Stats, error)
}

// Habit related types
type CreateHabitRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	Time        string `json:"time"`
}

type HabitList struct {
	Habits      []entities.Habit           `json:"habits"`
	Completions map[string]json.RawMessage `json:"completions"`
	LastUpdated time.Time                  `json:"lastUpdated"`
	Total       int                        `json:"total"`
}

type Export struct {
	Filename string
	Document *entities.HabitDocument
}
