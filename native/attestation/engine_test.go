package attestation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

const t0 = int64(1_700_000_000)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func hash(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type fixture struct {
	engine   *Engine
	buf      *events.Buffer
	admin    [20]byte
	attestor [20]byte
	alice    [20]byte
	bob      [20]byte
	now      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	f := &fixture{
		buf:      &events.Buffer{},
		admin:    addr(0xAD),
		attestor: addr(0xA7),
		alice:    addr(0xA1),
		bob:      addr(0xB0),
		now:      t0,
	}
	f.engine = NewEngine()
	f.engine.Bind(tx, f.buf, func() int64 { return f.now })
	require.NoError(t, f.engine.Initialize(f.admin, [][20]byte{f.attestor}))
	f.buf.Reset()
	return f
}

func (f *fixture) attest(t *testing.T, tournament, match uint64) *Match {
	t.Helper()
	m, err := f.engine.AttestMatch(f.attestor, MatchParams{
		TournamentID: tournament,
		MatchID:      match,
		ResultHash:   hash(byte(match)),
		Winner:       f.alice,
		Participants: [][20]byte{f.alice, f.bob},
		Scores:       []Score{{Player: f.alice, Points: 21}, {Player: f.bob, Points: 17}},
	})
	require.NoError(t, err)
	return m
}

func TestInitializeRequiresKey(t *testing.T) {
	tx := state.NewManager(storage.NewMemDB()).Begin()
	e := NewEngine()
	e.Bind(tx, nil, nil)
	require.ErrorIs(t, e.Initialize(addr(1), nil), coreerrors.ErrInvalidArgument)
	require.NoError(t, e.Initialize(addr(1), [][20]byte{addr(2)}))
	require.ErrorIs(t, e.Initialize(addr(1), [][20]byte{addr(2)}), coreerrors.ErrAlreadyInitialized)
}

func TestAttestMatchIsImmutable(t *testing.T) {
	f := newFixture(t)
	m := f.attest(t, 7, 1)
	require.Equal(t, uint64(t0), m.AttestedAt)
	require.Equal(t, f.attestor, m.AttestedBy)

	_, err := f.engine.AttestMatch(f.attestor, MatchParams{
		TournamentID: 7, MatchID: 1, ResultHash: hash(9),
		Winner: f.bob, Participants: [][20]byte{f.alice, f.bob},
	})
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExists)

	stored, err := f.engine.Match(1)
	require.NoError(t, err)
	require.Equal(t, hash(1), stored.ResultHash)
	require.Equal(t, f.alice, stored.Winner)
	require.Len(t, stored.Scores, 2)

	f.attest(t, 7, 2)
	ids, err := f.engine.TournamentMatches(7)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)

	emitted := f.buf.Events()
	require.Len(t, emitted, 2)
	payload, ok := events.Canonical(emitted[0])
	require.True(t, ok)
	require.Equal(t, TypeMatchAttested, payload.Type)
	require.Equal(t, "1", payload.Attributes["match"])
}

func TestAttestMatchRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AttestMatch(f.alice, MatchParams{MatchID: 1, ResultHash: hash(1), Winner: f.alice, Participants: [][20]byte{f.alice}})
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	cases := map[string]MatchParams{
		"no participants":  {MatchID: 1, ResultHash: hash(1), Winner: f.alice},
		"winner absent":    {MatchID: 1, ResultHash: hash(1), Winner: f.admin, Participants: [][20]byte{f.alice, f.bob}},
		"duplicate player": {MatchID: 1, ResultHash: hash(1), Winner: f.alice, Participants: [][20]byte{f.alice, f.alice}},
		"stray score":      {MatchID: 1, ResultHash: hash(1), Winner: f.alice, Participants: [][20]byte{f.alice}, Scores: []Score{{Player: f.bob}}},
		"empty hash":       {MatchID: 1, Winner: f.alice, Participants: [][20]byte{f.alice}},
	}
	for name, p := range cases {
		if _, err := f.engine.AttestMatch(f.attestor, p); !errors.Is(err, coreerrors.ErrInvalidArgument) {
			t.Fatalf("%s: expected invalid argument, got %v", name, err)
		}
	}
	require.Zero(t, f.buf.Len())
}

func TestAttestTournamentOnce(t *testing.T) {
	f := newFixture(t)
	f.attest(t, 3, 10)
	f.attest(t, 3, 11)

	params := TournamentParams{TournamentID: 3, FinalResultsHash: hash(3), Winner: f.alice, RunnerUp: f.bob}
	tour, err := f.engine.AttestTournament(f.attestor, params)
	require.NoError(t, err)
	require.Equal(t, uint64(2), tour.TotalMatches)

	_, err = f.engine.AttestTournament(f.attestor, params)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExists)

	_, err = f.engine.AttestMatch(f.attestor, MatchParams{
		TournamentID: 3, MatchID: 12, ResultHash: hash(12),
		Winner: f.alice, Participants: [][20]byte{f.alice},
	})
	require.ErrorIs(t, err, coreerrors.ErrFinalized)

	_, err = f.engine.AttestTournament(f.attestor, TournamentParams{TournamentID: 4, Winner: f.alice, RunnerUp: f.alice})
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
}

func TestDisputeLifecycle(t *testing.T) {
	f := newFixture(t)
	f.attest(t, 1, 5)

	_, err := f.engine.FileDispute(f.bob, 99, hash(0xEE), 1)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	d, err := f.engine.FileDispute(f.bob, 5, hash(0xEE), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), d.ID)
	require.False(t, d.Resolved)

	_, err = f.engine.FileDispute(f.bob, 5, hash(0xEF), 1)
	require.ErrorIs(t, err, coreerrors.ErrNonceReplay)

	second, err := f.engine.FileDispute(f.alice, 5, hash(0xEF), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.ID)

	ids, err := f.engine.MatchDisputes(5)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)

	_, err = f.engine.ResolveDispute(f.bob, 1, hash(0x01))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	f.now += 60
	resolved, err := f.engine.ResolveDispute(f.attestor, 1, hash(0x01))
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.Equal(t, uint64(t0+60), resolved.ResolvedAt)

	_, err = f.engine.ResolveDispute(f.admin, 1, hash(0x02))
	require.ErrorIs(t, err, coreerrors.ErrFinalized)
	_, err = f.engine.ResolveDispute(f.admin, 2, hash(0x02))
	require.NoError(t, err)

	ok, err := f.engine.VerifyResult(5, hash(5))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.engine.VerifyResult(5, hash(6))
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = f.engine.VerifyResult(404, hash(5))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAttestationKeyManagement(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.AddKey(f.admin, f.attestor), coreerrors.ErrAlreadyExists)
	require.ErrorIs(t, f.engine.AddKey(f.alice, f.bob), coreerrors.ErrUnauthorized)
	require.ErrorIs(t, f.engine.RemoveKey(f.admin, f.attestor), coreerrors.ErrInvalidArgument)

	require.NoError(t, f.engine.AddKey(f.admin, f.bob))
	require.NoError(t, f.engine.RemoveKey(f.admin, f.attestor))
	keys, err := f.engine.Keys()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{f.bob}, keys)

	_, err = f.engine.AttestMatch(f.attestor, MatchParams{MatchID: 1, ResultHash: hash(1), Winner: f.alice, Participants: [][20]byte{f.alice}})
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
}

func TestPauseBlocksWritesNotReads(t *testing.T) {
	f := newFixture(t)
	f.attest(t, 1, 1)
	require.NoError(t, f.engine.SetPaused(f.admin, true))

	_, err := f.engine.FileDispute(f.bob, 1, hash(1), 1)
	require.ErrorIs(t, err, coreerrors.ErrContractPaused)
	require.ErrorIs(t, f.engine.RotateAdmin(f.admin, f.bob), coreerrors.ErrContractPaused)
	_, err = f.engine.Match(1)
	require.NoError(t, err)

	require.NoError(t, f.engine.SetPaused(f.admin, false))
	require.NoError(t, f.engine.RotateAdmin(f.admin, f.bob))
	require.ErrorIs(t, f.engine.AddKey(f.admin, f.alice), coreerrors.ErrUnauthorized)
}
