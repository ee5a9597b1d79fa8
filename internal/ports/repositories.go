package ports

import (
	"context"

	"github.com/habitkeeper/core/internal/domain/entities"
)

// DocumentStore defines the persistence operations over the habit document
type DocumentStore interface {
	// Load returns the stored document. Missing or unreadable data yields an
	// empty default document; the failure is logged, never returned.
	Load(ctx context.Context) *entities.HabitDocument
	// Save stamps LastUpdated and replaces the stored document as a whole.
	Save(ctx context.Context, doc *entities.HabitDocument) error
	Exists(ctx context.Context) (bool, error)
	// Backup writes a side copy of doc and returns its file name.
	Backup(ctx context.Context, doc *entities.HabitDocument) (string, error)
}

// HealthChecker is implemented by stores that can report readiness
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
