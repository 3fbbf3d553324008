// Package jobstore manages the on-disk layout of conversion jobs. Each job
// is a single subdirectory of the base path, named by its ULID; the
// filesystem is the only source of truth, there is no in-memory index.
package jobstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// InputFileName is the transient name of the uploaded document inside a job
// directory. It is removed once conversion succeeds.
const InputFileName = "input.pdf"

// Store maps job identifiers to directories under a fixed base path
type Store struct {
	BasePath string
}

// NewStore creates the base directory if needed and returns a Store
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("unable to create job base directory %s: %w", basePath, err)
	}
	return &Store{BasePath: basePath}, nil
}

// NewJobID generates a fresh job identifier. ULIDs carry 80 bits of
// entropy on top of a timestamp which keeps collisions out of reach for
// per-request identifiers.
func NewJobID() string {
	return ulid.Make().String()
}

// ValidateID reports whether a caller-supplied job id is a well formed ULID.
// Anything that fails to parse is rejected before it gets near the filesystem.
func ValidateID(jobID string) bool {
	if len(jobID) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(jobID)
	return err == nil
}

// ValidateFilename rejects anything that could escape a job directory.
// This check must run before any filesystem access.
func ValidateFilename(filename string) bool {
	if filename == "" {
		return false
	}
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return false
	}
	return true
}

// JobDir returns the directory for a job id without touching the filesystem
func (store *Store) JobDir(jobID string) string {
	return filepath.Join(store.BasePath, jobID)
}

// CreateJob allocates a new job id and its directory
func (store *Store) CreateJob() (string, error) {
	jobID := NewJobID()
	jobDir := store.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("unable to create job directory %s: %w", jobDir, err)
	}
	return jobID, nil
}

// Exists reports whether a job directory is present
func (store *Store) Exists(jobID string) bool {
	info, err := os.Stat(store.JobDir(jobID))
	return err == nil && info.IsDir()
}

// WriteInput persists the uploaded document verbatim inside the job directory
func (store *Store) WriteInput(jobID string, content []byte) (string, error) {
	inputPath := filepath.Join(store.JobDir(jobID), InputFileName)
	if err := os.WriteFile(inputPath, content, 0644); err != nil {
		return "", fmt.Errorf("unable to write uploaded document: %w", err)
	}
	return inputPath, nil
}

// RemoveInput deletes the transient input document, keeping the page images
func (store *Store) RemoveInput(jobID string) error {
	return os.Remove(filepath.Join(store.JobDir(jobID), InputFileName))
}

// FilePath resolves a filename inside a job directory. Callers must have
// validated both the job id and the filename first.
func (store *Store) FilePath(jobID, filename string) string {
	return filepath.Join(store.JobDir(jobID), filename)
}

// Remove deletes a job directory and everything in it. Removing a job that
// is already gone is not an error.
func (store *Store) Remove(jobID string) error {
	return os.RemoveAll(store.JobDir(jobID))
}

// ReapOlderThan removes job directories whose last modification is older
// than maxAge and returns how many were removed. Individual failures are
// logged and skipped so one stuck directory cannot stall the reaper.
func (store *Store) ReapOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(store.BasePath)
	if err != nil {
		return 0, fmt.Errorf("unable to read job base directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	reaped := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed underneath us, nothing to do
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := store.Remove(entry.Name()); err != nil {
			if Logger != nil {
				Logger.Warn("Unable to remove expired job directory", "jobID", entry.Name(), "error", err)
			}
			continue
		}
		reaped++
	}
	return reaped, nil
}
