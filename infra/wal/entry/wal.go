package entry

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEveryAppend fsyncs each frame before Append returns.
	SyncEveryAppend bool
}

type WAL struct {
	mu      sync.Mutex
	dir     string
	segSize int64
	syncAll bool
	current *segment
}

// Open resumes appending to the newest segment in cfg.Dir, creating the
// directory and the first segment when needed. A torn frame left at the end
// of the newest segment by a crash is cut off first, so new frames follow
// the last complete one.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 2 * 1024 * 1024
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create wal dir")
	}

	indexes, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	last := 0
	if len(indexes) > 0 {
		last = indexes[len(indexes)-1]
		if err := dropTornTail(segmentPath(cfg.Dir, last)); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, last)
	if err != nil {
		return nil, errors.Wrapf(err, "open segment %d", last)
	}

	return &WAL{
		dir:     cfg.Dir,
		segSize: cfg.SegmentSize,
		syncAll: cfg.SyncEveryAppend,
		current: seg,
	}, nil
}

func (w *WAL) Append(r *Record) error {
	if len(r.Data) > MaxPayloadSize {
		return errors.Newf("seq %d: payload of %d bytes exceeds %d", r.Seq, len(r.Data), MaxPayloadSize)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.append(encodeFrame(r)); err != nil {
		return errors.Wrapf(err, "append seq %d", r.Seq)
	}
	if w.syncAll {
		if err := w.current.sync(); err != nil {
			return errors.Wrapf(err, "sync seq %d", r.Seq)
		}
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

func dropTornTail(path string) error {
	good, err := replaySegment(path, true, nil)
	if err != nil {
		return errors.Wrap(err, "scan newest segment")
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if good == st.Size() {
		return nil
	}
	if err := os.Truncate(path, good); err != nil {
		return errors.Wrapf(err, "truncate torn tail of %s", path)
	}
	return nil
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return errors.Wrap(err, "rotate")
	}
	w.current = seg
	return nil
}

// TruncateBefore removes closed segments whose records all have seq <= seq.
// The segment being appended to is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	current := w.current.index
	w.mu.Unlock()

	indexes, err := listSegments(w.dir)
	if err != nil {
		return err
	}

	for _, idx := range indexes {
		if idx >= current {
			break
		}
		path := segmentPath(w.dir, idx)
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq > seq {
			// later segments only hold higher sequences
			break
		}
		if err := os.Remove(path); err != nil {
			return errors.Wrapf(err, "remove segment %d", idx)
		}
	}
	return nil
}

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
func encodeFrame(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)
	return buf
}
