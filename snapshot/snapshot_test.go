package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"bite/domain/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = ledger.Address("0x00000000000000000000000000000000000000a1")
	bob   = ledger.Address("0x00000000000000000000000000000000000000b0")
)

func TestLoadMissing(t *testing.T) {
	_, found, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteLoad(t *testing.T) {
	l := ledger.New()
	_, err := l.Deposit(alice, 1000)
	require.NoError(t, err)
	sid, _, err := l.RegisterService(bob, ledger.ServiceSpec{Name: "GPU Compute", PricePerUnit: 10, Uptime: 99, Rating: 45})
	require.NoError(t, err)
	rid, _, err := l.CreateRequest(alice, sid, "train", 300)
	require.NoError(t, err)
	_, err = l.SubmitOffer(bob, rid, ledger.Commitment(200, 7))
	require.NoError(t, err)
	_, err = l.RevealOffer(bob, rid, 200, 7)
	require.NoError(t, err)

	dir := t.TempDir()
	w := &Writer{Dir: dir}
	require.NoError(t, w.Write(42, l.Export()))

	s, found, err := Load(dir)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(42), s.Seq)
	assert.Equal(t, l.Export(), s.State)

	restored := ledger.Restore(s.State)
	_, err = restored.SettlePayment(alice, rid, bob)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(200), restored.Balance(bob))
	assert.Equal(t, ledger.Amount(800), restored.Balance(alice))
}

func TestWriteReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	require.NoError(t, w.Write(1, ledger.New().Export()))
	require.NoError(t, w.Write(2, ledger.New().Export()))

	s, _, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.Seq)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("nope"), 0o644))
	_, _, err := Load(dir)
	assert.Error(t, err)
}
