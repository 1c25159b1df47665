// Package workerid persists a single worker identity across restarts.
//
// Per spec §6, only the worker id is persisted, as a single YAML key
// `workerId: <uint64>` written in-place into a caller-supplied file.
package workerid

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type doc struct {
	WorkerID uint64 `yaml:"workerId"`
}

// Load reads the worker id from path. A missing file is not an error; it
// returns (0, false, nil) so the caller can mint a new id.
func Load(path string) (id uint64, ok bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "workerid: read")
	}
	var d doc
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return 0, false, errors.Wrap(err, "workerid: unmarshal")
	}
	if d.WorkerID == 0 {
		return 0, false, nil
	}
	return d.WorkerID, true, nil
}

// Store writes id into path, replacing the workerId key in place if the
// file already exists and carries other keys, or creating it otherwise.
func Store(path string, id uint64) error {
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "workerid: read")
	}
	m := map[string]interface{}{}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return errors.Wrap(err, "workerid: unmarshal existing")
		}
	}
	m["workerId"] = id
	out, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "workerid: marshal")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrap(err, "workerid: write")
	}
	return nil
}
