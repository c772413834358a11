package service

import (
	"context"
	"time"

	"bite/snapshot"

	"github.com/cockroachdb/errors"
)

// TakeSnapshot writes the current state, then drops entry WAL segments and
// acknowledged outbox records the snapshot covers.
// It refuses while writes are refused: the WAL may then hold events the
// outbox never got, and only replay can restore them.
func (s *MarketService) TakeSnapshot(w *snapshot.Writer) (uint64, error) {
	s.mu.RLock()
	if s.broken != nil {
		err := s.broken
		s.mu.RUnlock()
		return 0, errors.Mark(errors.Wrap(err, "snapshot"), ErrUnavailable)
	}
	seq, state := s.seqGen.Current(), s.ledger.Export()
	s.mu.RUnlock()

	if err := w.Write(seq, state); err != nil {
		return 0, err
	}

	// Truncate ENTRY WAL after snapshot
	if err := s.entryWAL.TruncateBefore(seq); err != nil {
		return seq, err
	}

	// GC EXIT WAL (acked only)
	if err := s.outbox.TruncateAckedUpTo(seq); err != nil {
		return seq, err
	}
	return seq, nil
}

// RunSnapshotJob snapshots every interval until ctx is cancelled.
func (s *MarketService) RunSnapshotJob(
	ctx context.Context,
	dir string,
	interval time.Duration,
) {
	w := &snapshot.Writer{Dir: dir}
	log := s.log.WithField("job", "snapshot")

	t := time.NewTicker(interval)
	defer t.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if s.seqGen.Current() == last {
			continue
		}
		seq, err := s.TakeSnapshot(w)
		if err != nil {
			log.WithError(err).Warn("snapshot failed")
			continue
		}
		last = seq
		log.WithField("seq", seq).Info("snapshot written")
	}
}
