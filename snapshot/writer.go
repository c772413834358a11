package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"bite/domain/ledger"

	"github.com/cockroachdb/errors"
)

type Writer struct {
	Dir string
}

// Write replaces the snapshot atomically: readers see either the old file
// or the complete new one.
func (w *Writer) Write(seq uint64, state ledger.State) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.Dir, FileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	s := Snapshot{
		Seq:     seq,
		Created: time.Now(),
		State:   state,
	}
	if err := gob.NewEncoder(tmp).Encode(&s); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "encode snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(w.Dir, FileName))
}
