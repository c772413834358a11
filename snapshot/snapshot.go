package snapshot

import (
	"time"

	"bite/domain/ledger"
)

const FileName = "snapshot.bin"

type Snapshot struct {
	Seq     uint64
	Created time.Time
	State   ledger.State
}
