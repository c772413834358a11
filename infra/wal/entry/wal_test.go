package entry

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testType RecordType = 7

func appendN(t *testing.T, w *WAL, from, to uint64) {
	t.Helper()
	for seq := from; seq <= to; seq++ {
		require.NoError(t, w.Append(NewRecord(testType, seq, []byte(fmt.Sprintf("cmd-%d", seq)))))
	}
}

func collect(t *testing.T, dir string, after uint64) ([]*Record, uint64) {
	t.Helper()
	var out []*Record
	last, err := Replay(dir, after, func(r *Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out, last
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)

	appendN(t, w, 1, 100)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir, 0)
	require.Len(t, recs, 100)
	assert.Equal(t, uint64(100), last)
	for i, r := range recs {
		assert.Equal(t, testType, r.Type)
		assert.Equal(t, uint64(i+1), r.Seq)
		assert.Equal(t, fmt.Sprintf("cmd-%d", i+1), string(r.Data))
	}
}

func TestReplayAfter(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 10)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir, 6)
	require.Len(t, recs, 4)
	assert.Equal(t, uint64(7), recs[0].Seq)
	assert.Equal(t, uint64(10), last)

	recs, last = collect(t, dir, 10)
	assert.Empty(t, recs)
	assert.Equal(t, uint64(10), last)
}

func TestReplayEmptyDir(t *testing.T) {
	recs, last := collect(t, t.TempDir(), 3)
	assert.Empty(t, recs)
	assert.Equal(t, uint64(3), last)
}

func TestRotationAndReopen(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 128})
	require.NoError(t, err)
	appendN(t, w, 1, 20)
	require.NoError(t, w.Close())

	segs, err := listSegments(dir)
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)

	// reopening must continue in the newest segment, not overwrite segment 0
	w, err = Open(Config{Dir: dir, SegmentSize: 128})
	require.NoError(t, err)
	assert.Equal(t, segs[len(segs)-1], w.current.index)
	appendN(t, w, 21, 25)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir, 0)
	require.Len(t, recs, 25)
	assert.Equal(t, uint64(25), last)
}

func TestTornTailIsEndOfLog(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	recs, last := collect(t, dir, 0)
	assert.Len(t, recs, 2)
	assert.Equal(t, uint64(2), last)
}

func TestReopenAfterTornTailAppendsCleanly(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	// seq 3 never made it; the restarted writer reissues it
	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 3, 5)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir, 0)
	require.Len(t, recs, 5)
	assert.Equal(t, uint64(5), last)
	for i, r := range recs {
		assert.Equal(t, uint64(i+1), r.Seq)
	}

	// and a second restart still reads the whole log
	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	recs, _ = collect(t, dir, 0)
	assert.Len(t, recs, 5)
}

func TestTornHeaderIsCutOnOpen(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 1)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	full := st.Size()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{byte(testType), 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	st, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, full, st.Size())
}

func TestHugeLengthIsCorruptNotPanic(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 2)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	// first frame claims a 0xFFFFFFFE byte payload
	binary.BigEndian.PutUint32(b[17:21], 0xFFFFFFFE)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	assert.NotPanics(t, func() {
		_, err = Replay(dir, 0, func(*Record) error { return nil })
	})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = Open(Config{Dir: dir})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestLengthPastSegmentEndInOlderSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	appendN(t, w, 1, 6)
	require.NoError(t, w.Close())

	segs, err := listSegments(dir)
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)

	path := segmentPath(dir, segs[0])
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.BigEndian.PutUint32(b[17:21], 1<<20)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Replay(dir, 0, func(*Record) error { return nil })
	assert.Error(t, err)
}

func TestAppendRejectsOversizedPayload(t *testing.T) {
	w, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(NewRecord(testType, 1, make([]byte, MaxPayloadSize+1)))
	assert.Error(t, err)
}

func TestCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 2)
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[headerSize] ^= 0xff
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Replay(dir, 0, func(*Record) error { return nil })
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestReplayStopsOnHandlerError(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 5)
	require.NoError(t, w.Close())

	boom := fmt.Errorf("boom")
	n := 0
	_, err = Replay(dir, 0, func(*Record) error {
		n++
		if n == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
}

func TestTruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	appendN(t, w, 1, 12)

	before, err := listSegments(dir)
	require.NoError(t, err)
	require.Greater(t, len(before), 2)

	require.NoError(t, w.TruncateBefore(6))

	after, err := listSegments(dir)
	require.NoError(t, err)
	assert.Less(t, len(after), len(before))
	_, err = os.Stat(segmentPath(dir, w.current.index))
	assert.NoError(t, err)

	// everything newer than the cut is still replayable
	recs, last := collect(t, dir, 6)
	assert.Len(t, recs, 6)
	assert.Equal(t, uint64(12), last)

	require.NoError(t, w.Close())
}

func TestTruncateKeepsCurrentSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	appendN(t, w, 1, 3)

	require.NoError(t, w.TruncateBefore(100))
	_, err = os.Stat(filepath.Join(dir, "segment-000000.wal"))
	assert.NoError(t, err)
	require.NoError(t, w.Close())
}
