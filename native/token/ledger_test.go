package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

type fixture struct {
	ledger *Ledger
	roles  *roles.Registry
	admin  [20]byte
	now    int64
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	reg := roles.NewRegistry("token")
	reg.SetState(tx)
	f := &fixture{admin: addr(0xAD), roles: reg, now: 1_700_000_000}
	require.NoError(t, reg.Initialize(f.admin))
	f.ledger = NewLedger(params)
	f.ledger.SetState(tx)
	f.ledger.SetAuthority(reg)
	f.ledger.SetNowFunc(func() int64 { return f.now })
	return f
}

func TestTransferMovesBalance(t *testing.T) {
	f := newFixture(t, Params{Symbol: "cctr"})
	alice, bob := addr(0x01), addr(0x02)
	require.Equal(t, "CCTR", f.ledger.Symbol())
	require.NoError(t, f.ledger.Allocate(alice, big.NewInt(100)))

	require.NoError(t, f.ledger.Transfer(alice, bob, big.NewInt(40)))
	bal, err := f.ledger.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(60), bal.Int64())
	bal, err = f.ledger.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, int64(40), bal.Int64())

	err = f.ledger.Transfer(bob, alice, big.NewInt(41))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientBalance)
	bal, _ = f.ledger.Balance(bob)
	require.Equal(t, int64(40), bal.Int64())

	require.ErrorIs(t, f.ledger.Transfer(alice, bob, big.NewInt(-1)), coreerrors.ErrInvalidArgument)
}

func TestMintRequiresMinterAndHonoursLimits(t *testing.T) {
	f := newFixture(t, Params{Symbol: "CCTR", MaxSupply: big.NewInt(1000), DailyMintLimit: big.NewInt(300)})
	minter := addr(0x0A)
	holder := addr(0x0B)

	require.ErrorIs(t, f.ledger.Mint(minter, holder, big.NewInt(10)), coreerrors.ErrUnauthorized)
	require.NoError(t, f.roles.Grant(f.admin, roles.RoleMinter, minter))

	require.NoError(t, f.ledger.Mint(minter, holder, big.NewInt(200)))
	require.ErrorIs(t, f.ledger.Mint(minter, holder, big.NewInt(101)), coreerrors.ErrCapacityExceeded)
	require.NoError(t, f.ledger.Mint(minter, holder, big.NewInt(100)))

	// Next day the window resets.
	f.now += 24 * 60 * 60
	require.NoError(t, f.ledger.Mint(minter, holder, big.NewInt(300)))

	f.now += 24 * 60 * 60
	require.NoError(t, f.ledger.Mint(minter, holder, big.NewInt(200)))
	require.ErrorIs(t, f.ledger.Mint(minter, holder, big.NewInt(1)), coreerrors.ErrCapacityExceeded)

	supply, err := f.ledger.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, int64(1000), supply.Int64())
}

func TestBurnSelfOrBurner(t *testing.T) {
	f := newFixture(t, Params{Symbol: "CCTR"})
	holder, burner := addr(0x01), addr(0x02)
	require.NoError(t, f.ledger.Allocate(holder, big.NewInt(50)))

	require.NoError(t, f.ledger.Burn(holder, holder, big.NewInt(10)))
	require.ErrorIs(t, f.ledger.Burn(burner, holder, big.NewInt(10)), coreerrors.ErrUnauthorized)
	require.NoError(t, f.roles.Grant(f.admin, roles.RoleBurner, burner))
	require.NoError(t, f.ledger.Burn(burner, holder, big.NewInt(10)))
	require.ErrorIs(t, f.ledger.Burn(holder, holder, big.NewInt(31)), coreerrors.ErrInsufficientBalance)

	supply, err := f.ledger.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, int64(30), supply.Int64())
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	f := newFixture(t, Params{Symbol: "CCTR"})
	owner, spender, to := addr(0x01), addr(0x02), addr(0x03)
	require.NoError(t, f.ledger.Allocate(owner, big.NewInt(100)))
	require.NoError(t, f.ledger.Approve(owner, spender, big.NewInt(30)))

	require.NoError(t, f.ledger.TransferFrom(spender, owner, to, big.NewInt(20)))
	require.ErrorIs(t, f.ledger.TransferFrom(spender, owner, to, big.NewInt(11)), coreerrors.ErrInsufficientBalance)
	left, err := f.ledger.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(10), left.Int64())
}

func TestPausedLedgerRejectsTransfers(t *testing.T) {
	f := newFixture(t, Params{Symbol: "CCTR"})
	require.NoError(t, f.ledger.Allocate(addr(0x01), big.NewInt(5)))
	require.NoError(t, f.roles.SetPaused(f.admin, true))
	require.ErrorIs(t, f.ledger.Transfer(addr(0x01), addr(0x02), big.NewInt(1)), coreerrors.ErrContractPaused)
}

func TestBankRoutesBySymbol(t *testing.T) {
	tx := state.NewManager(storage.NewMemDB()).Begin()
	bank := NewBank(NewLedger(Params{Symbol: "CCTR"}), NewLedger(Params{Symbol: "usdc"}))
	bank.Bind(tx, nil, nil)
	require.Equal(t, []string{"CCTR", "USDC"}, bank.Symbols())

	usdc, err := bank.Ledger("USDC")
	require.NoError(t, err)
	require.NoError(t, usdc.Allocate(addr(0x01), big.NewInt(9)))
	require.NoError(t, bank.Transfer("usdc", addr(0x01), addr(0x02), big.NewInt(4)))
	bal, err := bank.Balance("USDC", addr(0x02))
	require.NoError(t, err)
	require.Equal(t, int64(4), bal.Int64())

	_, err = bank.Ledger("SOL")
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}
