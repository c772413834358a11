package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var ErrCorruptRecord = errors.New("wal: crc mismatch")

// MaxPayloadSize bounds a single record. A header claiming more is corrupt.
const MaxPayloadSize = 16 << 20

type ReplayHandler func(*Record) error

// Replay feeds every record with seq > after to fn, in log order, and
// returns the highest sequence seen (or after, if nothing newer exists).
// A frame cut short at the end of the newest segment is treated as the end
// of the log; anywhere else it is corruption.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	indexes, err := listSegments(dir)
	if err != nil {
		return after, err
	}

	lastSeq = after
	var prev uint64
	for i, idx := range indexes {
		newest := i == len(indexes)-1
		_, err := replaySegment(segmentPath(dir, idx), newest, func(rec *Record) error {
			if rec.Seq <= prev {
				return errors.Newf("non-monotonic seq %d after %d in segment %d", rec.Seq, prev, idx)
			}
			prev = rec.Seq
			if rec.Seq <= after {
				return nil
			}
			lastSeq = rec.Seq
			return fn(rec)
		})
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

// replaySegment returns the offset just past the last complete frame. When
// tornOK is set, a cut-short frame ends the segment there instead of
// failing. fn may be nil.
func replaySegment(path string, tornOK bool, fn ReplayHandler) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}

	r := bufio.NewReader(f)
	var good int64
	for {
		rec, n, err := readRecord(r, st.Size()-good)
		if err != nil {
			if err == io.EOF {
				return good, nil
			}
			if err == io.ErrUnexpectedEOF && tornOK {
				return good, nil
			}
			return good, errors.Wrapf(err, "read %s at offset %d", path, good)
		}
		good += n
		if fn == nil {
			continue
		}
		if err := fn(rec); err != nil {
			return good, err
		}
	}
}

// readRecord decodes one frame from r, which has remaining bytes left. It
// returns the frame size alongside the record.
func readRecord(r io.Reader, remaining int64) (*Record, int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	if l > MaxPayloadSize {
		return nil, 0, errors.Wrapf(ErrCorruptRecord, "payload length %d", l)
	}
	size := int64(headerSize) + int64(l) + 4
	if size > remaining {
		return nil, 0, io.ErrUnexpectedEOF
	}

	data := make([]byte, int(l)+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(append(header, payload...), crc) {
		return nil, 0, ErrCorruptRecord
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, size, nil
}
