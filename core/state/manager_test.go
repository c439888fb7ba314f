package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"safetymodule/core/types"
	"safetymodule/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	return NewManager(db), db
}

func TestKVRoundTripAndCommit(t *testing.T) {
	mgr, db := newTestManager(t)

	require.NoError(t, mgr.KVPut([]byte("counter"), uint64(42)))
	var got uint64
	ok, err := mgr.KVGet([]byte("counter"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), got)

	// Nothing reaches the database before Commit.
	_, err = db.Get(kvKey([]byte("counter")))
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, mgr.Commit())
	fresh := NewManager(db)
	got = 0
	ok, err = fresh.KVGet([]byte("counter"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), got)
}

func TestKVGetMissingAndDelete(t *testing.T) {
	mgr, _ := newTestManager(t)
	var out uint64
	ok, err := mgr.KVGet([]byte("missing"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVPut([]byte("k"), uint64(1)))
	require.NoError(t, mgr.KVDelete([]byte("k")))
	ok, err = mgr.KVGet([]byte("k"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	var list []string
	require.NoError(t, mgr.KVGetList([]byte("none"), &list))
	require.NotNil(t, list)
	require.Empty(t, list)

	require.Error(t, mgr.KVPut(nil, uint64(1)))
}

func TestSnapshotRevertRestoresWritesAndEvents(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(1)))
	mgr.AppendEvent(&types.Event{Type: "first"})

	snap := mgr.Snapshot()
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(2)))
	require.NoError(t, mgr.KVPut([]byte("b"), uint64(3)))
	mgr.AppendEvent(&types.Event{Type: "second"})

	inner := mgr.Snapshot()
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(9)))
	mgr.RevertToSnapshot(inner)

	var a uint64
	_, err := mgr.KVGet([]byte("a"), &a)
	require.NoError(t, err)
	require.Equal(t, uint64(2), a)

	mgr.RevertToSnapshot(snap)
	_, err = mgr.KVGet([]byte("a"), &a)
	require.NoError(t, err)
	require.Equal(t, uint64(1), a)
	ok, err := mgr.KVGet([]byte("b"), nil)
	require.NoError(t, err)
	require.False(t, ok)

	evts := mgr.Events()
	require.Len(t, evts, 1)
	require.Equal(t, "first", evts[0].Type)
}

func TestReleaseSnapshotKeepsWrites(t *testing.T) {
	mgr, _ := newTestManager(t)
	outer := mgr.Snapshot()
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(1)))
	inner := mgr.Snapshot()
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(2)))
	mgr.AppendEvent(&types.Event{Type: "inner"})
	mgr.ReleaseSnapshot(inner)
	require.Equal(t, 1, mgr.PendingSnapshots())

	var a uint64
	_, err := mgr.KVGet([]byte("a"), &a)
	require.NoError(t, err)
	require.Equal(t, uint64(2), a)
	require.Len(t, mgr.Events(), 1)

	mgr.RevertToSnapshot(outer)
	require.Zero(t, mgr.PendingSnapshots())
	ok, err := mgr.KVGet([]byte("a"), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, mgr.Events())
}

func TestDiscardDropsPendingState(t *testing.T) {
	mgr, db := newTestManager(t)
	require.NoError(t, mgr.KVPut([]byte("a"), uint64(1)))
	mgr.AppendEvent(&types.Event{Type: "x"})
	mgr.Discard()
	require.Empty(t, mgr.Events())
	require.NoError(t, mgr.Commit())
	_, err := db.Get(kvKey([]byte("a")))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenLedgerTransfer(t *testing.T) {
	mgr, _ := newTestManager(t)
	alice := []byte{0x01}
	bob := []byte{0x02}

	require.NoError(t, mgr.RegisterToken("stk", "Staked", 18))
	require.Error(t, mgr.RegisterToken("STK", "Again", 18))
	require.True(t, mgr.TokenExists("Stk"))

	require.NoError(t, mgr.Mint(alice, "STK", big.NewInt(100)))
	require.NoError(t, mgr.Transfer("STK", alice, bob, big.NewInt(40)))

	balA, err := mgr.Balance(alice, "STK")
	require.NoError(t, err)
	require.Equal(t, "60", balA.String())
	balB, err := mgr.Balance(bob, "stk")
	require.NoError(t, err)
	require.Equal(t, "40", balB.String())

	err = mgr.Transfer("STK", bob, alice, big.NewInt(41))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	balB, err = mgr.Balance(bob, "STK")
	require.NoError(t, err)
	require.Equal(t, "40", balB.String())

	require.Error(t, mgr.SetBalance(alice, "NOPE", big.NewInt(1)))
	list, err := mgr.TokenList()
	require.NoError(t, err)
	require.Equal(t, []string{"STK"}, list)
}

func TestRolesAndPauses(t *testing.T) {
	mgr, _ := newTestManager(t)
	gov := []byte{0xAA}

	require.False(t, mgr.HasRole("GOVERNANCE", gov))
	require.NoError(t, mgr.SetRole("GOVERNANCE", gov))
	require.NoError(t, mgr.SetRole("GOVERNANCE", gov))
	require.True(t, mgr.HasRole("GOVERNANCE", gov))
	members, err := mgr.RoleMembers("GOVERNANCE")
	require.NoError(t, err)
	require.Len(t, members, 1)

	require.NoError(t, mgr.RevokeRole("GOVERNANCE", gov))
	require.False(t, mgr.HasRole("GOVERNANCE", gov))

	require.False(t, mgr.IsPaused("stakepool"))
	require.NoError(t, mgr.SetPaused("stakepool", true))
	require.True(t, mgr.IsPaused("stakepool"))
	require.False(t, mgr.IsPaused("auction"))
}
