package audit

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
)

type typed struct{ evt *types.Event }

func (t typed) EventType() string   { return t.evt.Type }
func (t typed) Event() *types.Event { return t.evt }

func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store, err := New(db, WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	require.NoError(t, err)
	return store
}

func TestAppendChainsRecords(t *testing.T) {
	store := newStore(t)
	first, err := store.Append(&types.Event{Type: "escrow.deposited", Attributes: map[string]string{"token": "CCTR", "amount": "500"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Index)
	require.Equal(t, genesisHash, first.PrevHash)

	store.Emit(typed{&types.Event{Type: "payout.executed", Attributes: map[string]string{"amount": "100"}}})
	head := store.Head()
	require.NotNil(t, head)
	require.Equal(t, uint64(2), head.Index)
	require.Equal(t, first.Hash, head.PrevHash)

	checked, err := store.VerifyChain()
	require.NoError(t, err)
	require.Equal(t, uint64(2), checked)

	reopened, err := New(store.db)
	require.NoError(t, err)
	require.Equal(t, head.Hash, reopened.Head().Hash)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	store := newStore(t)
	for i := 0; i < 3; i++ {
		_, err := store.Append(&types.Event{Type: "token.transferred", Attributes: map[string]string{"amount": fmt.Sprint(i)}})
		require.NoError(t, err)
	}
	require.NoError(t, store.db.Model(&Record{}).Where("seq = ?", 2).Update("attributes", `{"amount":"999"}`).Error)

	checked, err := store.VerifyChain()
	require.ErrorIs(t, err, ErrChainBroken)
	require.Equal(t, uint64(1), checked)
}

func TestChainHashIsDeterministic(t *testing.T) {
	a := ChainHash(genesisHash, 1, "x", "{}")
	require.Equal(t, a, ChainHash(genesisHash, 1, "x", "{}"))
	require.NotEqual(t, a, ChainHash(genesisHash, 2, "x", "{}"))
	require.Len(t, a, 64)
}

func TestExportParquet(t *testing.T) {
	store := newStore(t)
	for i := 0; i < 5; i++ {
		_, err := store.Append(&types.Event{Type: "nodes.purchased", Attributes: map[string]string{"id": fmt.Sprint(i)}})
		require.NoError(t, err)
	}
	path := filepath.Join(t.TempDir(), "audit.parquet")
	written, err := store.ExportParquet(path, 2)
	require.NoError(t, err)
	require.Equal(t, 3, written)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(3), pr.GetNumRows())
	rows := make([]parquetRow, 3)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(3), rows[0].Index)
	require.Equal(t, "nodes.purchased", rows[2].Type)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}
