// Package runs stores completed extraction runs as one JSON file each.
package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/pagecat/post"
	"github.com/pevans/pagecat/scroll"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one completed extraction.
type Run struct {
	ID         uuid.UUID         `json:"id"`
	SourceURL  string            `json:"source_url"`
	Timestamp  time.Time         `json:"timestamp"`
	Records    []post.Record     `json:"records"`
	StopReason scroll.StopReason `json:"stop_reason"`
	Ticks      int               `json:"ticks"`
}

// Store is a directory of run files named <id>.json.
type Store struct {
	storageDir string
}

// ReadError describes a failure to read a single run file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ListResult contains the runs that could be read, newest first, and the
// files that could not.
type ListResult struct {
	Runs   []Run
	Errors []ReadError
}

// NewStore creates a run store, creating the directory if it doesn't exist
// (0700: owner-only access).
func NewStore(storageDir string) (*Store, error) {
	if err := os.MkdirAll(storageDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &Store{
		storageDir: storageDir,
	}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.storageDir, id.String()+".json")
}

// Add saves a run. A run without an ID is given a new one; a run without a
// timestamp is stamped with the current time. The stored run is returned.
func (s *Store) Add(run Run) (*Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	if run.Records == nil {
		run.Records = []post.Record{}
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}

	// 0600: owner-only read/write
	if err := os.WriteFile(s.path(run.ID), data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write run: %w", err)
	}

	return &run, nil
}

// List returns every stored run, newest first. Corrupted files are collected
// in the result's Errors rather than failing the whole listing.
func (s *Store) List() (*ListResult, error) {
	entries, err := os.ReadDir(s.storageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	result := &ListResult{Runs: []Run{}}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		run, err := readRun(filepath.Join(s.storageDir, entry.Name()))
		if err != nil {
			result.Errors = append(result.Errors, ReadError{
				Filename: entry.Name(),
				Err:      err,
			})
			continue
		}
		result.Runs = append(result.Runs, *run)
	}

	sort.SliceStable(result.Runs, func(i, j int) bool {
		return result.Runs[i].Timestamp.After(result.Runs[j].Timestamp)
	})
	return result, nil
}

// Get retrieves a run by its ID.
func (s *Store) Get(id uuid.UUID) (*Run, error) {
	run, err := readRun(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	return run, nil
}

// Delete removes a run by its ID.
func (s *Store) Delete(id uuid.UUID) error {
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrRunNotFound
		}
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func readRun(filename string) (*Run, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
