package service

import (
	"encoding/json"
	"strconv"
	"time"

	"bite/domain/ledger"
	exitwal "bite/infra/wal/exit"

	"github.com/google/uuid"
)

// eventNamespace scopes the name-based event ids.
var eventNamespace = uuid.MustParse("6f1c3a52-8a0e-4d43-9a55-2b7f0e6c9d14")

// Envelope is what consumers of the event stream receive. ID is derived
// from (Seq, Index), so an event re-published after a crash keeps its id.
type Envelope struct {
	ID    uuid.UUID        `json:"id"`
	Seq   uint64           `json:"seq"`
	Index uint32           `json:"index"`
	Type  ledger.EventType `json:"type"`
	Time  time.Time        `json:"time"`
	Event ledger.Event     `json:"event"`
}

func EventID(seq uint64, index uint32) uuid.UUID {
	name := strconv.FormatUint(seq, 10) + "/" + strconv.FormatUint(uint64(index), 10)
	return uuid.NewSHA1(eventNamespace, []byte(name))
}

// outboxMessages wraps the events of command seq. at is the WAL record
// time so replay rebuilds byte-identical envelopes.
func outboxMessages(seq uint64, at int64, events []ledger.Event) ([]exitwal.Message, error) {
	msgs := make([]exitwal.Message, 0, len(events))
	for i, e := range events {
		env := Envelope{
			ID:    EventID(seq, uint32(i)),
			Seq:   seq,
			Index: uint32(i),
			Type:  e.Type,
			Time:  time.Unix(0, at).UTC(),
			Event: e,
		}
		b, err := json.Marshal(env)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, exitwal.Message{Key: []byte(e.PartitionKey()), Payload: b})
	}
	return msgs, nil
}
