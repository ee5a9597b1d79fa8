package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/infrastructure/logger"
)

const (
	dataDirPerm  os.FileMode = 0o755
	dataFilePerm os.FileMode = 0o644

	maxBackupAttempts = 1000
)

// FileDocumentRepository keeps the habit document in a single JSON file
type FileDocumentRepository struct {
	path       string
	backupDir  string
	quarantine bool
	now        func() time.Time
	logger     *logger.Logger
}

// FileOption configures a FileDocumentRepository
type FileOption func(*FileDocumentRepository)

// WithBackupDir sets where backup files are written. Defaults to the data file directory.
func WithBackupDir(dir string) FileOption {
	return func(r *FileDocumentRepository) {
		if dir != "" {
			r.backupDir = dir
		}
	}
}

// WithQuarantine enables moving unreadable data files aside before falling back,
// so the next Save cannot overwrite the only copy.
func WithQuarantine(enabled bool) FileOption {
	return func(r *FileDocumentRepository) {
		r.quarantine = enabled
	}
}

// WithClock overrides the clock used for LastUpdated and backup names.
func WithClock(now func() time.Time) FileOption {
	return func(r *FileDocumentRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewFileDocumentRepository creates a file-backed document repository
func NewFileDocumentRepository(path string, logger *logger.Logger, opts ...FileOption) *FileDocumentRepository {
	r := &FileDocumentRepository{
		path:      path,
		backupDir: filepath.Dir(path),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.WithComponent("document_repository"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the backing file path
func (r *FileDocumentRepository) Path() string {
	return r.path
}

// Load reads the document, falling back to an empty one on any read or decode failure.
func (r *FileDocumentRepository) Load(ctx context.Context) *entities.HabitDocument {
	start := time.Now()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warnw("Data file not found, using empty document", "path", r.path)
		} else {
			r.logger.LogStoreOperation("load", r.path, since(start), err)
		}
		return entities.NewHabitDocument(r.now())
	}

	doc, err := decodeDocument(data)
	if err != nil {
		r.logger.LogStoreOperation("load", r.path, since(start), err)
		if r.quarantine {
			r.quarantineCorrupt()
		}
		return entities.NewHabitDocument(r.now())
	}

	r.logger.LogStoreOperation("load", r.path, since(start), nil)
	return doc
}

// Save stamps LastUpdated and atomically replaces the data file.
// doc is only stamped once the new content is in place.
func (r *FileDocumentRepository) Save(ctx context.Context, doc *entities.HabitDocument) error {
	start := time.Now()

	stamped := *doc
	stamped.LastUpdated = r.now()
	stamped.Normalize()

	data, err := json.MarshalIndent(&stamped, "", "  ")
	if err != nil {
		r.logger.LogStoreOperation("save", r.path, since(start), err)
		return fmt.Errorf("%w: encode document: %w", entities.ErrPersistence, err)
	}

	if err := writeFileAtomic(r.path, append(data, '\n')); err != nil {
		r.logger.LogStoreOperation("save", r.path, since(start), err)
		return fmt.Errorf("%w: write %s: %w", entities.ErrPersistence, r.path, err)
	}

	*doc = stamped
	r.logger.LogStoreOperation("save", r.path, since(start), nil)
	return nil
}

// Exists reports whether the data file is present
func (r *FileDocumentRepository) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(r.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %w", entities.ErrPersistence, r.path, err)
}

// Backup writes doc to backup-<epoch millis>.json in the backup directory.
// A name already taken gets a -<n> suffix instead of being overwritten.
func (r *FileDocumentRepository) Backup(ctx context.Context, doc *entities.HabitDocument) (string, error) {
	start := time.Now()
	millis := r.now().UnixMilli()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		r.logger.LogStoreOperation("backup", r.backupDir, since(start), err)
		return "", fmt.Errorf("%w: encode backup: %w", entities.ErrPersistence, err)
	}

	name, target, err := r.reserveBackup(millis)
	if err != nil {
		r.logger.LogStoreOperation("backup", r.backupDir, since(start), err)
		return "", fmt.Errorf("%w: reserve backup: %w", entities.ErrPersistence, err)
	}

	if err := writeFileAtomic(target, append(data, '\n')); err != nil {
		_ = os.Remove(target)
		r.logger.LogStoreOperation("backup", target, since(start), err)
		return "", fmt.Errorf("%w: write backup: %w", entities.ErrPersistence, err)
	}

	r.logger.LogStoreOperation("backup", target, since(start), nil)
	return name, nil
}

// reserveBackup claims the first free backup name by creating it exclusively.
func (r *FileDocumentRepository) reserveBackup(millis int64) (string, string, error) {
	if err := os.MkdirAll(r.backupDir, dataDirPerm); err != nil {
		return "", "", err
	}

	for attempt := 0; attempt < maxBackupAttempts; attempt++ {
		name := backupName(millis, attempt)
		target := filepath.Join(r.backupDir, name)

		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, dataFilePerm)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", err
		}
		if err := f.Close(); err != nil {
			return "", "", err
		}
		return name, target, nil
	}
	return "", "", fmt.Errorf("no free backup name for %d after %d attempts", millis, maxBackupAttempts)
}

func backupName(millis int64, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("backup-%d.json", millis)
	}
	return fmt.Sprintf("backup-%d-%d.json", millis, attempt)
}

// HealthCheck verifies the data directory is present and is a directory
func (r *FileDocumentRepository) HealthCheck(ctx context.Context) error {
	dir := filepath.Dir(r.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", dir)
	}
	return nil
}

func decodeDocument(data []byte) (*entities.HabitDocument, error) {
	var doc entities.HabitDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dataDirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, dataFilePerm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func (r *FileDocumentRepository) quarantineCorrupt() {
	base := filepath.Base(r.path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	stamp := r.now().UTC().Format("20060102-150405")
	target := filepath.Join(filepath.Dir(r.path), fmt.Sprintf("%s.corrupt-%s%s", name, stamp, ext))

	if err := os.Rename(r.path, target); err != nil {
		r.logger.Errorw("Failed to quarantine corrupt data file", "path", r.path, "error", err)
		return
	}
	r.logger.Warnw("Corrupt data file moved aside", "path", r.path, "quarantine", target)
}

func since(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
