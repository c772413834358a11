package entry

import "time"

// RecordType tags a record with the command it carries. The values are
// owned by the writer; the log only stores them.
type RecordType uint8

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

const headerSize = 1 + 8 + 8 + 4
