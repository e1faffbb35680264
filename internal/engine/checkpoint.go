package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CheckpointManager saves and loads batch progress so an interrupted run
// can resume where it stopped.
type CheckpointManager struct {
	checkpointDir string
}

// checkpointData is the serializable batch state.
type checkpointData struct {
	RunID        string          `json:"run_id"`
	Batch        string          `json:"batch"`
	Timestamp    time.Time       `json:"timestamp"`
	Processed    []string        `json:"processed"`
	Reservations []string        `json:"reservations"`
	Stats        checkpointStats `json:"stats"`
}

type checkpointStats struct {
	PagesFetched     int64 `json:"pages_fetched"`
	PagesFailed      int64 `json:"pages_failed"`
	RecordsExtracted int64 `json:"records_extracted"`
	RecordsDropped   int64 `json:"records_dropped"`
	RecordsInserted  int64 `json:"records_inserted"`
	RecordsUpdated   int64 `json:"records_updated"`
	RecordsUnchanged int64 `json:"records_unchanged"`
}

// NewCheckpointManager creates a CheckpointManager writing under dir.
func NewCheckpointManager(dir string) *CheckpointManager {
	return &CheckpointManager{checkpointDir: dir}
}

func (cm *CheckpointManager) path(batch string) string {
	return filepath.Join(cm.checkpointDir, "checkpoint-"+batch+".json")
}

// Save serializes the session's progress to disk.
func (cm *CheckpointManager) Save(s *Session) error {
	if err := os.MkdirAll(cm.checkpointDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data := checkpointData{
		RunID:        s.RunID,
		Batch:        s.Batch.Key(),
		Timestamp:    time.Now(),
		Processed:    s.ProcessedTitles(),
		Reservations: s.Reservations.Export(),
		Stats: checkpointStats{
			PagesFetched:     s.Stats.PagesFetched.Load(),
			PagesFailed:      s.Stats.PagesFailed.Load(),
			RecordsExtracted: s.Stats.RecordsExtracted.Load(),
			RecordsDropped:   s.Stats.RecordsDropped.Load(),
			RecordsInserted:  s.Stats.RecordsInserted.Load(),
			RecordsUpdated:   s.Stats.RecordsUpdated.Load(),
			RecordsUnchanged: s.Stats.RecordsUnchanged.Load(),
		},
	}

	// Write to temp file, then rename (atomic write)
	finalPath := cm.path(data.Batch)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// Load restores a session's progress from disk. It reports false when no
// checkpoint exists for the session's batch.
func (cm *CheckpointManager) Load(s *Session) (bool, error) {
	f, err := os.Open(cm.path(s.Batch.Key()))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil // No checkpoint to restore
		}
		return false, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var data checkpointData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return false, fmt.Errorf("decode checkpoint: %w", err)
	}

	s.RunID = data.RunID
	for _, title := range data.Processed {
		s.MarkProcessed(title)
	}
	s.Reservations.Import(data.Reservations)

	s.Stats.PagesFetched.Store(data.Stats.PagesFetched)
	s.Stats.PagesFailed.Store(data.Stats.PagesFailed)
	s.Stats.RecordsExtracted.Store(data.Stats.RecordsExtracted)
	s.Stats.RecordsDropped.Store(data.Stats.RecordsDropped)
	s.Stats.RecordsInserted.Store(data.Stats.RecordsInserted)
	s.Stats.RecordsUpdated.Store(data.Stats.RecordsUpdated)
	s.Stats.RecordsUnchanged.Store(data.Stats.RecordsUnchanged)
	return true, nil
}

// HasCheckpoint returns true if a checkpoint file exists for the batch.
func (cm *CheckpointManager) HasCheckpoint(batch string) bool {
	_, err := os.Stat(cm.path(batch))
	return err == nil
}

// Clean removes the batch's checkpoint file.
func (cm *CheckpointManager) Clean(batch string) error {
	if err := os.Remove(cm.path(batch)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
