package multisig

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type setup struct {
	treasury *Treasury
	ledger   *token.Ledger
	roles    *roles.Registry
	admin    [20]byte
	signers  [][20]byte
}

func newSetup(t *testing.T, threshold uint32) *setup {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	s := &setup{admin: addr(0xAD), signers: [][20]byte{addr(0x11), addr(0x22), addr(0x33)}}
	s.ledger = token.NewLedger(token.Params{Symbol: "CCTR"})
	bank := token.NewBank(s.ledger)
	bank.Bind(tx, nil, nil)

	s.roles = roles.NewRegistry("vault")
	s.roles.SetState(tx)
	require.NoError(t, s.roles.Initialize(s.admin))
	require.NoError(t, s.roles.Replace(s.admin, roles.RoleMultisigSigner, s.signers))

	s.treasury = NewTreasury("vault")
	s.treasury.SetState(tx)
	s.treasury.SetAuthority(s.roles)
	s.treasury.SetAssets(bank)
	s.treasury.SetNowFunc(func() int64 { return 42 })
	require.NoError(t, s.treasury.Configure(s.admin, threshold))

	require.NoError(t, s.ledger.Allocate(s.admin, big.NewInt(1000)))
	require.NoError(t, s.treasury.Fund(s.admin, "CCTR", big.NewInt(1000)))
	return s
}

func TestConfigureBounds(t *testing.T) {
	s := newSetup(t, 2)
	require.ErrorIs(t, s.treasury.Configure(s.admin, 0), coreerrors.ErrInvalidArgument)
	require.ErrorIs(t, s.treasury.Configure(s.admin, 4), coreerrors.ErrInvalidArgument)
	require.ErrorIs(t, s.treasury.Configure(s.signers[0], 1), coreerrors.ErrUnauthorized)
}

func TestTwoOfThreeExecutesOnce(t *testing.T) {
	s := newSetup(t, 2)
	recipient := addr(0x99)

	p, err := s.treasury.Propose(s.signers[0], "CCTR", big.NewInt(400), recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.ID)
	require.False(t, p.Executed)
	require.Equal(t, [][20]byte{s.signers[0]}, p.Approvals)

	_, err = s.treasury.Approve(s.signers[0], p.ID)
	require.ErrorIs(t, err, coreerrors.ErrDuplicateApproval)

	p, err = s.treasury.Approve(s.signers[1], p.ID)
	require.NoError(t, err)
	require.True(t, p.Executed)
	require.Equal(t, uint64(42), p.ExecutedAt)

	_, err = s.treasury.Approve(s.signers[2], p.ID)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExecuted)

	bal, err := s.ledger.Balance(recipient)
	require.NoError(t, err)
	require.Equal(t, int64(400), bal.Int64())
	tracked, err := s.treasury.Balance("CCTR")
	require.NoError(t, err)
	require.Equal(t, int64(600), tracked.Int64())
}

func TestThresholdOneExecutesOnPropose(t *testing.T) {
	s := newSetup(t, 1)
	p, err := s.treasury.Propose(s.signers[2], "CCTR", big.NewInt(1000), addr(0x99))
	require.NoError(t, err)
	require.True(t, p.Executed)

	stored, err := s.treasury.Proposal(p.ID)
	require.NoError(t, err)
	require.True(t, stored.Executed)
}

func TestProposeChecks(t *testing.T) {
	s := newSetup(t, 2)
	_, err := s.treasury.Propose(addr(0x44), "CCTR", big.NewInt(1), addr(0x99))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, err = s.treasury.Propose(s.signers[0], "CCTR", big.NewInt(1001), addr(0x99))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)
	_, err = s.treasury.Proposal(77)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	require.NoError(t, s.roles.SetPaused(s.admin, true))
	_, err = s.treasury.Propose(s.signers[0], "CCTR", big.NewInt(1), addr(0x99))
	require.ErrorIs(t, err, coreerrors.ErrContractPaused)
}

func TestThresholdCapturedAtPropose(t *testing.T) {
	s := newSetup(t, 3)
	p, err := s.treasury.Propose(s.signers[0], "CCTR", big.NewInt(10), addr(0x99))
	require.NoError(t, err)
	require.NoError(t, s.treasury.Configure(s.admin, 2))

	p, err = s.treasury.Approve(s.signers[1], p.ID)
	require.NoError(t, err)
	require.False(t, p.Executed)
	p, err = s.treasury.Approve(s.signers[2], p.ID)
	require.NoError(t, err)
	require.True(t, p.Executed)
}

func TestPayDebitsTrackedBalance(t *testing.T) {
	s := newSetup(t, 2)
	require.NoError(t, s.treasury.Pay("CCTR", addr(0x77), big.NewInt(300)))
	require.ErrorIs(t, s.treasury.Pay("CCTR", addr(0x77), big.NewInt(701)), coreerrors.ErrInsufficientFunds)
}

func TestRemovedSignerApprovalStopsCounting(t *testing.T) {
	s := newSetup(t, 2)
	p, err := s.treasury.Propose(s.signers[0], "CCTR", big.NewInt(100), addr(0x99))
	require.NoError(t, err)

	rotated := [][20]byte{addr(0x22), addr(0x33), addr(0x44)}
	require.NoError(t, s.roles.Replace(s.admin, roles.RoleMultisigSigner, rotated))

	p, err = s.treasury.Approve(addr(0x22), p.ID)
	require.NoError(t, err)
	require.False(t, p.Executed, "approval from removed signer must not count")
	require.Len(t, p.Approvals, 2)

	p, err = s.treasury.Approve(addr(0x44), p.ID)
	require.NoError(t, err)
	require.True(t, p.Executed)
	bal, err := s.ledger.Balance(addr(0x99))
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.Int64())
}
