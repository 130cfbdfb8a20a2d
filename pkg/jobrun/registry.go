package jobrun

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry persists and loads job Records from an on-disk directory.
//
// Directory layout:
//
//	<root>/<job_id>/job.json
//
// Records survive coordinator restarts so the chain of generations stays
// inspectable after the fact.
type Registry struct {
	root string
}

// NewRegistry creates a registry rooted at the given directory.
func NewRegistry(root string) *Registry {
	return &Registry{root: strings.TrimSpace(root)}
}

func (r *Registry) RootDir() string {
	return r.root
}

func (r *Registry) JobDir(jobID string) string {
	return filepath.Join(r.root, jobID)
}

func (r *Registry) jobPath(jobID string) string {
	return filepath.Join(r.JobDir(jobID), "job.json")
}

func (r *Registry) ensureRoot() error {
	if strings.TrimSpace(r.root) == "" {
		return fmt.Errorf("job registry root dir is empty")
	}
	return os.MkdirAll(r.root, 0755)
}

// Write persists a record, replacing any prior one, via temp-file + rename
// so readers never observe a partial job.json.
func (r *Registry) Write(record *Record) error {
	if record == nil {
		return fmt.Errorf("job record is nil")
	}
	jobID := strings.TrimSpace(record.JobID)
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if err := r.ensureRoot(); err != nil {
		return err
	}

	jobDir := r.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(jobDir, "job.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp job file: %w", err)
	}

	if err := os.Rename(tmpName, r.jobPath(jobID)); err != nil {
		return fmt.Errorf("rename job file: %w", err)
	}
	return nil
}

// Get loads the record for jobID.
func (r *Registry) Get(jobID string) (*Record, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	b, err := os.ReadFile(r.jobPath(jobID))
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("job.json is empty")
	}

	var record Record
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}
	return &record, nil
}

// List returns all records, newest first.
func (r *Registry) List() ([]Record, error) {
	if err := r.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read jobs root: %w", err)
	}

	out := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := r.Get(entry.Name())
		if err != nil {
			// Partially written or foreign directory; skip.
			continue
		}
		out = append(out, *record)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
