package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/harukit/echosync/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const checkpointFile = "checkpoint.json"

// CheckpointStore persists the pagination checkpoint as a single small
// JSON file. Writes are atomic, so a crash during Save leaves the
// previous valid checkpoint intact.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates a checkpoint store under dir
func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{
		path: filepath.Join(dir, checkpointFile),
	}
}

// Path returns the location of the checkpoint file
func (x *CheckpointStore) Path() string {
	return x.path
}

// Load returns the last persisted checkpoint, or the zero checkpoint
// when none has been saved yet. A checkpoint file that exists but does
// not decode is surfaced as an error; the operator recovers with Reset.
func (x *CheckpointStore) Load() (*model.Checkpoint, error) {
	data, err := os.ReadFile(x.path)
	if os.IsNotExist(err) {
		return &model.Checkpoint{}, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read checkpoint", goerr.V("path", x.path))
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, goerr.Wrap(err, "corrupt checkpoint file", goerr.V("path", x.path))
	}
	return &cp, nil
}

// Save durably overwrites the checkpoint with the given cursor
func (x *CheckpointStore) Save(cursor string) error {
	cp := model.Checkpoint{
		Cursor:    cursor,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal checkpoint")
	}

	if err := writeFileAtomic(x.path, data); err != nil {
		return goerr.Wrap(err, "failed to save checkpoint", goerr.V("path", x.path))
	}
	return nil
}

// Reset clears the checkpoint so the next sync restarts pagination
// from the beginning. Used for recovery from detected corruption.
func (x *CheckpointStore) Reset() error {
	if err := os.Remove(x.path); err != nil && !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to remove checkpoint", goerr.V("path", x.path))
	}
	return nil
}
