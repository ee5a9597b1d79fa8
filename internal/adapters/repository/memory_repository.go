package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/habitkeeper/core/internal/domain/entities"
)

// MemoryDocumentRepository holds the document in process memory.
// Loads and saves exchange deep copies so callers never share state with the store.
type MemoryDocumentRepository struct {
	mu      sync.RWMutex
	doc     *entities.HabitDocument
	backups map[string]*entities.HabitDocument
	now     func() time.Time
}

// NewMemoryDocumentRepository creates an empty in-memory repository
func NewMemoryDocumentRepository(now func() time.Time) *MemoryDocumentRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryDocumentRepository{
		backups: make(map[string]*entities.HabitDocument),
		now:     now,
	}
}

func (r *MemoryDocumentRepository) Load(ctx context.Context) *entities.HabitDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.doc == nil {
		return entities.NewHabitDocument(r.now())
	}
	return r.doc.Clone()
}

func (r *MemoryDocumentRepository) Save(ctx context.Context, doc *entities.HabitDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc.LastUpdated = r.now()
	doc.Normalize()
	r.doc = doc.Clone()
	return nil
}

func (r *MemoryDocumentRepository) Exists(ctx context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc != nil, nil
}

func (r *MemoryDocumentRepository) Backup(ctx context.Context, doc *entities.HabitDocument) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	millis := r.now().UnixMilli()
	for attempt := 0; attempt < maxBackupAttempts; attempt++ {
		name := backupName(millis, attempt)
		if _, taken := r.backups[name]; taken {
			continue
		}
		r.backups[name] = doc.Clone()
		return name, nil
	}
	return "", fmt.Errorf("%w: no free backup name for %d", entities.ErrPersistence, millis)
}

func (r *MemoryDocumentRepository) HealthCheck(ctx context.Context) error {
	return nil
}

// Backups returns the names of the backups taken so far
func (r *MemoryDocumentRepository) Backups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backups))
	for name := range r.backups {
		names = append(names, name)
	}
	return names
}
