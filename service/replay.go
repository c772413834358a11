package service

import (
	"bite/domain/ledger"
	"bite/infra/metrics"
	entrywal "bite/infra/wal/entry"
	"bite/snapshot"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

/*
Recover rebuilds the ledger from the latest snapshot plus the entry WAL.

IMPORTANT:
- This MUST run before accepting traffic
- Commands the ledger rejected originally are rejected again and skipped.
  Admission rules come from each recorded command, never from current
  configuration
- Events of replayed commands are put into the outbox again; puts are
  idempotent so only events lost in a crash are actually added
*/
func Recover(
	snapshotDir string,
	walDir string,
	outbox Outbox,
	log *logrus.Logger,
) (*ledger.Ledger, uint64, error) {
	logger := log.WithField("component", "recovery")

	l := ledger.New()
	var from uint64

	snap, found, err := snapshot.Load(snapshotDir)
	if err != nil {
		return nil, 0, err
	}
	if found {
		l = ledger.Restore(snap.State)
		from = snap.Seq
		logger.WithField("seq", from).Info("snapshot loaded")
	}

	applied, rejected := 0, 0
	lastSeq, err := entrywal.Replay(walDir, from, func(rec *entrywal.Record) error {
		cmd, err := decodeCommand(rec.Type, rec.Data)
		if err != nil {
			return errors.Wrapf(err, "decode seq %d", rec.Seq)
		}

		r, err := apply(l, cmd)
		if err != nil {
			if !ledger.IsDomain(err) {
				return errors.Wrapf(err, "apply seq %d", rec.Seq)
			}
			rejected++
			return nil
		}
		applied++

		msgs, err := outboxMessages(rec.Seq, rec.Time, r.Events)
		if err != nil {
			return err
		}
		return outbox.PutNew(rec.Seq, msgs)
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "replay entry wal")
	}

	metrics.AddReplayed(applied + rejected)
	logger.WithFields(logrus.Fields{
		"last_seq": lastSeq,
		"applied":  applied,
		"rejected": rejected,
	}).Info("WAL replay completed")

	return l, lastSeq, nil
}
