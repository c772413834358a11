package broadcaster

import (
	"context"
	"time"

	"bite/infra/metrics"
	exitwal "bite/infra/wal/exit"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Publisher delivers one event to the broker. It must return only after
// the broker acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Broadcaster struct {
	exitWAL   *exitwal.ExitWAL
	publisher Publisher
	interval  time.Duration
	batch     int
	log       *logrus.Entry
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	exitWAL *exitwal.ExitWAL,
	publisher Publisher,
	cfg Config,
	log *logrus.Logger,
) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	return &Broadcaster{
		exitWAL:   exitWAL,
		publisher: publisher,
		interval:  cfg.Interval,
		batch:     cfg.BatchSize,
		log:       log.WithField("component", "broadcaster"),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run drains the outbox every interval until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.WithField("interval", b.interval).Info("started")
	defer b.log.Info("stopped")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := b.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				b.log.WithError(err).Warn("publish failed, will retry")
			}
		}
	}
}

// ------------------------------------------------
// DRAIN
// ------------------------------------------------

// DrainOnce publishes pending events in outbox order and stops at the
// first failure, so a consumer never sees event n+1 before event n.
func (b *Broadcaster) DrainOnce(ctx context.Context) (int, error) {
	var recs []*exitwal.ExitRecord
	err := b.exitWAL.ScanPending(func(rec *exitwal.ExitRecord) error {
		recs = append(recs, rec)
		if len(recs) >= b.batch {
			return errBatchFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errBatchFull) {
		return 0, errors.Wrap(err, "scan outbox")
	}

	sent := 0
	for _, rec := range recs {
		if err := b.exitWAL.MarkSent(rec.Seq, rec.Index); err != nil {
			return sent, err
		}

		if err := b.publisher.Publish(ctx, rec.Key, rec.Payload); err != nil {
			metrics.RecordPublishFailed()
			if markErr := b.exitWAL.MarkFailed(rec.Seq, rec.Index); markErr != nil {
				b.log.WithError(markErr).Error("mark failed")
			}
			b.updatePending()
			return sent, errors.Wrapf(err, "event %d/%d", rec.Seq, rec.Index)
		}

		if err := b.exitWAL.MarkAcked(rec.Seq, rec.Index); err != nil {
			return sent, err
		}
		metrics.RecordPublished()
		sent++
	}

	if sent > 0 {
		b.log.WithField("events", sent).Debug("published")
	}
	b.updatePending()
	return sent, nil
}

var errBatchFull = errors.New("batch full")

func (b *Broadcaster) updatePending() {
	if n, err := b.exitWAL.Pending(); err == nil {
		metrics.SetPending(n)
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}
