package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

var (
	_ Writer = (*Tx)(nil)
	_ Reader = (*Manager)(nil)
)

type storedRecord struct {
	Name   string
	Amount *big.Int
	At     uint64
	Closed bool
}

func TestTxIsolationUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	tx := mgr.Begin()
	require.NoError(t, tx.KVPut([]byte("record/1"), storedRecord{Name: "one", Amount: big.NewInt(5), At: 9}))

	var rec storedRecord
	ok, err := tx.KVGet([]byte("record/1"), &rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", rec.Name)

	ok, err = mgr.KVGet([]byte("record/1"), &rec)
	require.NoError(t, err)
	if ok {
		t.Fatalf("uncommitted write visible through manager")
	}

	require.NoError(t, tx.Commit())
	ok, err = mgr.KVGet([]byte("record/1"), &rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, rec.Amount.Cmp(big.NewInt(5)))
	require.EqualValues(t, 9, rec.At)
}

func TestTxDiscardLeavesStateUntouched(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	seed := mgr.Begin()
	require.NoError(t, StoreBig(seed, []byte("balance"), big.NewInt(100)))
	require.NoError(t, seed.Commit())

	tx := mgr.Begin()
	_, err := AddBig(tx, []byte("balance"), big.NewInt(-40))
	require.NoError(t, err)
	require.NoError(t, tx.KVDelete([]byte("balance")))
	has, err := tx.KVHas([]byte("balance"))
	require.NoError(t, err)
	require.False(t, has)
	tx.Discard()

	balance, err := LoadBig(mgr, []byte("balance"))
	require.NoError(t, err)
	require.Equal(t, "100", balance.String())
	require.ErrorIs(t, tx.KVPut([]byte("x"), uint64(1)), errTxClosed)
}

func TestTxDeleteThenPut(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	tx := mgr.Begin()
	require.NoError(t, tx.KVPut([]byte("k"), uint64(1)))
	require.NoError(t, tx.KVDelete([]byte("k")))
	require.NoError(t, tx.KVPut([]byte("k"), uint64(2)))
	value, err := LoadUint64(tx, []byte("k"))
	require.NoError(t, err)
	require.EqualValues(t, 2, value)
	require.NoError(t, tx.Commit())

	value, err = LoadUint64(mgr, []byte("k"))
	require.NoError(t, err)
	require.EqualValues(t, 2, value)
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	tx := mgr.Begin()
	require.NoError(t, tx.KVAppend([]byte("index"), []byte("a")))
	require.NoError(t, tx.KVAppend([]byte("index"), []byte("b")))
	require.NoError(t, tx.KVAppend([]byte("index"), []byte("a")))
	require.NoError(t, tx.Commit())

	var list [][]byte
	require.NoError(t, mgr.KVGetList([]byte("index"), &list))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)
}

func TestNextSequence(t *testing.T) {
	tx := NewManager(storage.NewMemDB()).Begin()
	for want := uint64(1); want <= 3; want++ {
		got, err := NextSequence(tx, []byte("seq"))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	_, err := mgr.KVGet(nil, nil)
	require.Error(t, err)
	tx := mgr.Begin()
	require.Error(t, tx.KVPut(nil, uint64(1)))
	require.NoError(t, tx.Commit())
	require.ErrorIs(t, tx.Commit(), errTxClosed)
}
