package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Load reads the snapshot in dir. A missing snapshot is not an error:
// found is false and recovery starts from an empty ledger.
func Load(dir string) (s Snapshot, found bool, err error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return Snapshot{}, false, errors.Wrap(err, "decode snapshot")
	}
	return s, true, nil
}
