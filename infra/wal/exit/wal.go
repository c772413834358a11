package exit

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// ExitRecord is one outgoing event. Seq is the command that produced it,
// Index its position among that command's events.
type ExitRecord struct {
	Seq         uint64
	Index       uint32
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Key         []byte
	Payload     []byte
}

// Message is what a command hands to the outbox: a partition key and the
// encoded event.
type Message struct {
	Key     []byte
	Payload []byte
}

const valueHeader = 1 + 4 + 8 + 2

// binary encoding: [state:1][retries:4][lastAttempt:8][keyLen:2][key][payload]
func encodeRecord(r *ExitRecord) []byte {
	buf := make([]byte, valueHeader+len(r.Key)+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	binary.BigEndian.PutUint16(buf[13:15], uint16(len(r.Key)))
	n := copy(buf[valueHeader:], r.Key)
	copy(buf[valueHeader+n:], r.Payload)
	return buf
}

func decodeRecord(key, b []byte) (*ExitRecord, error) {
	if len(b) < valueHeader {
		return nil, errors.Newf("invalid exit record length %d", len(b))
	}
	keyLen := int(binary.BigEndian.Uint16(b[13:15]))
	if len(b) < valueHeader+keyLen {
		return nil, errors.Newf("invalid exit record key length %d", keyLen)
	}
	seq, idx, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	rest := b[valueHeader:]
	return &ExitRecord{
		Seq:         seq,
		Index:       idx,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Key:         append([]byte(nil), rest[:keyLen]...),
		Payload:     append([]byte(nil), rest[keyLen:]...),
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the event outbox. Records are keyed by (seq, index) so a scan
// returns them in the order the ledger produced them.
type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores the events of one command as NEW in a single batch.
// Events already present are left untouched, so replaying a command
// never resets a record that was already published.
func (w *ExitWAL) PutNew(seq uint64, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	b := w.db.NewBatch()
	defer b.Close()

	for i, m := range msgs {
		key := keyFor(seq, uint32(i))
		_, closer, err := w.db.Get(key)
		if err == nil {
			_ = closer.Close()
			continue
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return err
		}
		rec := &ExitRecord{State: StateNew, Key: m.Key, Payload: m.Payload}
		if err := b.Set(key, encodeRecord(rec), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Get returns the current record for an event.
func (w *ExitWAL) Get(seq uint64, idx uint32) (*ExitRecord, error) {
	key := keyFor(seq, idx)
	val, closer, err := w.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return decodeRecord(key, val)
}

func (w *ExitWAL) MarkSent(seq uint64, idx uint32) error {
	return w.update(seq, idx, func(r *ExitRecord) { r.State = StateSent })
}

func (w *ExitWAL) MarkAcked(seq uint64, idx uint32) error {
	return w.update(seq, idx, func(r *ExitRecord) { r.State = StateAcked })
}

func (w *ExitWAL) MarkFailed(seq uint64, idx uint32) error {
	return w.update(seq, idx, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
	})
}

func (w *ExitWAL) update(seq uint64, idx uint32, fn func(*ExitRecord)) error {
	rec, err := w.Get(seq, idx)
	if err != nil {
		return errors.Wrapf(err, "outbox %d/%d", seq, idx)
	}
	fn(rec)
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(seq, idx), encodeRecord(rec), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanPending visits every record not yet ACKED, in (seq, index) order.
// SENT records are included: a crash between send and ack means the
// event must go out again. Returning an error from fn stops the scan.
func (w *ExitWAL) ScanPending(fn func(*ExitRecord) error) error {
	return w.scan(func(rec *ExitRecord) error {
		if rec.State == StateAcked {
			return nil
		}
		return fn(rec)
	})
}

// Pending counts records not yet ACKED.
func (w *ExitWAL) Pending() (int, error) {
	n := 0
	err := w.ScanPending(func(*ExitRecord) error {
		n++
		return nil
	})
	return n, err
}

// TruncateAckedUpTo deletes ACKED records produced by commands up to seq.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) error {
	b := w.db.NewBatch()
	defer b.Close()

	err := w.scan(func(rec *ExitRecord) error {
		if rec.Seq > seq {
			return errStop
		}
		if rec.State == StateAcked {
			return b.Delete(keyFor(rec.Seq, rec.Index), nil)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return err
	}
	return b.Commit(pebble.Sync)
}

var errStop = errors.New("stop")

func (w *ExitWAL) scan(fn func(*ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64, idx uint32) []byte {
	return []byte(fmt.Sprintf("%s%020d/%04d", keyPrefix, seq, idx))
}

func parseKey(b []byte) (seq uint64, idx uint32, err error) {
	_, err = fmt.Sscanf(string(b), keyPrefix+"%d/%d", &seq, &idx)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parse outbox key %q", b)
	}
	return seq, idx, nil
}
