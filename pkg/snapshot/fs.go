package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MarkerName is the metadata marker file finalizing a checkpoint.
const MarkerName = "_metadata"

// metadata is the marker payload. Files are listed relative to the
// checkpoint root so a checkpoint tree can be moved wholesale.
type metadata struct {
	Sequence int64    `json:"sequence"`
	Mode     Mode     `json:"mode"`
	Files    []string `json:"files"`
}

// lineage tracks, per checkpoint root, what the last snapshot captured so
// incremental snapshots can write deltas against it.
type lineage struct {
	lastState State
	files     []string
}

// FSBackend writes checkpoints to a local filesystem tree as
// root/chk-<seq>/ directories.
//
// In incremental mode, each checkpoint writes only the counter delta since
// the previous one and the marker references the whole delta chain.
// Incremental chains never span roots: the first snapshot into a fresh root
// rebases to a full capture.
type FSBackend struct {
	mode Mode

	mu       sync.Mutex
	lineages map[string]*lineage
}

var _ Backend = (*FSBackend)(nil)

// NewFS creates a filesystem snapshot backend in the given mode.
func NewFS(mode Mode) *FSBackend {
	return &FSBackend{mode: mode, lineages: make(map[string]*lineage)}
}

func (b *FSBackend) Mode() Mode {
	return b.mode
}

// Snapshot writes checkpoint seq of state under root.
//
// Write order is data files first, then the marker via temp-file + rename,
// so a concurrent scan never observes a marked-but-partial checkpoint.
func (b *FSBackend) Snapshot(ctx context.Context, root string, seq int64, state State) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(root, fmt.Sprintf("chk-%d", seq))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}

	var files []string
	var err error
	switch b.mode {
	case ModeIncremental:
		files, err = b.writeIncremental(root, dir, seq, state)
	default:
		files, err = b.writeFull(dir, seq, state)
	}
	if err != nil {
		return "", err
	}

	if err := writeMarker(dir, metadata{Sequence: seq, Mode: b.mode, Files: files}); err != nil {
		return "", err
	}

	b.mu.Lock()
	b.lineages[root] = &lineage{lastState: state.Clone(), files: files}
	b.mu.Unlock()

	return dir, nil
}

func (b *FSBackend) writeFull(dir string, seq int64, state State) ([]string, error) {
	name := fmt.Sprintf("state-%d.json", seq)
	if err := writeJSON(filepath.Join(dir, name), state); err != nil {
		return nil, fmt.Errorf("write state file: %w", err)
	}
	return []string{filepath.Join(filepath.Base(dir), name)}, nil
}

func (b *FSBackend) writeIncremental(root, dir string, seq int64, state State) ([]string, error) {
	b.mu.Lock()
	prev := b.lineages[root]
	b.mu.Unlock()

	delta := state.Clone()
	var parentFiles []string
	if prev != nil {
		for i := range delta.Emitted {
			if i < len(prev.lastState.Emitted) {
				delta.Emitted[i] -= prev.lastState.Emitted[i]
			}
		}
		parentFiles = prev.files
	}

	name := fmt.Sprintf("delta-%d.json", seq)
	if err := writeJSON(filepath.Join(dir, name), delta); err != nil {
		return nil, fmt.Errorf("write delta file: %w", err)
	}

	files := make([]string, 0, len(parentFiles)+1)
	files = append(files, parentFiles...)
	files = append(files, filepath.Join(filepath.Base(dir), name))
	return files, nil
}

// Restore reconstructs state from a completed checkpoint directory by
// reading its marker and summing the referenced files.
func (b *FSBackend) Restore(ctx context.Context, location string) (*Restored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(location, MarkerName))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint marker: %w", err)
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse checkpoint marker: %w", err)
	}

	root := filepath.Dir(location)
	var state State
	for _, rel := range meta.Files {
		raw, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint file %s: %w", rel, err)
		}
		var part State
		if err := json.Unmarshal(raw, &part); err != nil {
			return nil, fmt.Errorf("parse checkpoint file %s: %w", rel, err)
		}
		for i, v := range part.Emitted {
			for len(state.Emitted) <= i {
				state.Emitted = append(state.Emitted, 0)
			}
			state.Emitted[i] += v
		}
	}

	return &Restored{State: state, Sequence: meta.Sequence}, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0644)
}

// writeMarker finalizes a checkpoint. Temp-file + rename keeps the marker
// write atomic: the marker either exists complete or not at all.
func writeMarker(dir string, meta metadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint marker: %w", err)
	}
	b = append(b, '\n')

	// The temp name must not contain the marker substring, or a concurrent
	// scan could deem the checkpoint complete before the rename.
	tmp, err := os.CreateTemp(dir, ".marker.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp marker: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp marker: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, MarkerName)); err != nil {
		return fmt.Errorf("rename marker: %w", err)
	}
	return nil
}
