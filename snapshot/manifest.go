package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	apierrors "github.com/flowpod/flowpod/errors"
)

const manifestFile = "manifest.json"

// RangeSpec is the contiguous logical range one shard owns.
type RangeSpec struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Manifest records how a snapshot's keyspace was divided. It is written
// once per snapshot generation and never mutated afterwards.
type Manifest struct {
	ShardCount int         `json:"shard_count"`
	Ranges     []RangeSpec `json:"ranges"`
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

// ReadManifest loads a snapshot's manifest.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.ErrSnapshotDoesNotExist
		}
		return nil, err
	}
	m := new(Manifest)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
