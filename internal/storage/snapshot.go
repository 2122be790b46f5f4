package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot is a point-in-time dump of engine state, written on shutdown and
// on sequencer panics for post-mortem inspection. It is never loaded back
// into an engine.
type Snapshot struct {
	Seq    uint64          `json:"seq"` // Last processed sequence number
	TsUnix int64           `json:"ts"`  // Creation timestamp (Unix seconds)
	Reason string          `json:"reason,omitempty"`
	State  json.RawMessage `json:"state"`
}

// SnapshotManager handles saving and loading snapshots.
type SnapshotManager struct {
	dir string
	log *slog.Logger
}

// NewSnapshotManager creates a new snapshot manager.
// dir: directory to store snapshot files.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir, log: slog.Default()}
}

// SetLogger replaces the default logger.
func (sm *SnapshotManager) SetLogger(log *slog.Logger) {
	sm.log = log
}

// Dir returns the snapshot directory.
func (sm *SnapshotManager) Dir() string {
	return sm.dir
}

// CreateSnapshot marshals state into a snapshot taken after seq.
func CreateSnapshot(seq uint64, reason string, state any) (*Snapshot, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return &Snapshot{
		Seq:    seq,
		TsUnix: time.Now().Unix(),
		Reason: reason,
		State:  raw,
	}, nil
}

// Save writes a snapshot to disk and returns its path.
func (sm *SnapshotManager) Save(snap *Snapshot) (string, error) {
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	filename := fmt.Sprintf("snapshot_%d_%d.json", snap.Seq, snap.TsUnix)
	path := filepath.Join(sm.dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	sm.log.Info("SNAPSHOT_SAVED",
		slog.Uint64("seq", snap.Seq),
		slog.String("reason", snap.Reason),
		slog.String("path", path))

	return path, nil
}

type snapFile struct {
	path string
	seq  uint64
	ts   int64
}

// list returns snapshot files, newest first.
func (sm *SnapshotManager) list() ([]snapFile, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		return nil, err
	}

	var files []snapFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var f snapFile
		if _, err := fmt.Sscanf(entry.Name(), "snapshot_%d_%d.json", &f.seq, &f.ts); err != nil {
			continue // Not a snapshot file
		}
		f.path = filepath.Join(sm.dir, entry.Name())
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].seq != files[j].seq {
			return files[i].seq > files[j].seq
		}
		return files[i].ts > files[j].ts
	})
	return files, nil
}

// LoadLatest loads the most recent snapshot from disk.
// Returns nil if no snapshot exists.
func (sm *SnapshotManager) LoadLatest() (*Snapshot, error) {
	files, err := sm.list()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(files[0].path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Cleanup removes old snapshots, keeping only the latest keepCount.
func (sm *SnapshotManager) Cleanup(keepCount int) error {
	files, err := sm.list()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if keepCount < 0 {
		keepCount = 0
	}

	for i := keepCount; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			sm.log.Warn("SNAPSHOT_REMOVE_FAILED", slog.String("path", files[i].path), slog.Any("error", err))
		}
	}
	return nil
}
