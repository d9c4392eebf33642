package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/payout"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
	"github.com/hustletexas/cyber-arcade-verse-rally/services/vaultd/audit"
)

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, strings.TrimSpace(stdout.String()), stderr.String()
}

func useLightKeystore(t *testing.T) {
	t.Helper()
	original := keystoreParams
	keystoreParams = crypto.LightKeystore
	t.Cleanup(func() { keystoreParams = original })
	t.Setenv(passphraseEnv, "correct horse battery staple")
}

func TestUsage(t *testing.T) {
	code, _, stderr := runCLI()
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: vault-cli")

	code, _, stderr = runCLI("launch")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: launch")
}

func TestKeygenAndAddress(t *testing.T) {
	useLightKeystore(t)
	path := filepath.Join(t.TempDir(), "keys", "attestor.json")

	code, address, stderr := runCLI("keygen", "--out", path)
	require.Equal(t, 0, code, stderr)
	_, err := crypto.ParsePrincipal(address)
	require.NoError(t, err)

	code, again, stderr := runCLI("address", "--keystore", path)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, address, again)

	code, _, stderr = runCLI("keygen", "--out", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "already exists")
}

func TestSignPayoutRecoversSigner(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	var recipient [20]byte
	recipient[0] = 0x01

	code, out, stderr := runCLI("sign-payout",
		"--key", hex.EncodeToString(key.Bytes()),
		"--tournament", "cup-1",
		"--recipient", crypto.FormatPrincipal(recipient),
		"--amount", "1_000",
		"--nonce", "1",
	)
	require.Equal(t, 0, code, stderr)
	sig, err := hex.DecodeString(strings.TrimPrefix(out, "0x"))
	require.NoError(t, err)

	signer, err := payout.RecoverSigner(vault.Namespace, payout.Authorization{
		Scope: "cup-1", Recipient: recipient, Amount: big.NewInt(1000), Nonce: 1,
	}, sig)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Principal(), signer)

	code, _, stderr = runCLI("sign-payout", "--key", hex.EncodeToString(key.Bytes()), "--tournament", "cup-1", "--recipient", "nope", "--amount", "1")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "--recipient")
}

func TestIssueToken(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "hmac")
	require.NoError(t, os.WriteFile(secret, []byte("0123456789abcdef0123456789abcdef\n"), 0o600))
	var who [20]byte
	who[19] = 0x07
	code, token, stderr := runCLI("issue-token", "--secret-file", secret, "--subject", crypto.FormatPrincipal(who))
	require.Equal(t, 0, code, stderr)
	require.Equal(t, 2, strings.Count(token, "."))
}

func TestExportAudit(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := audit.Open("sqlite", dsn)
	require.NoError(t, err)
	store, err := audit.New(db)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := store.Append(&types.Event{Type: "escrow.deposited", Attributes: map[string]string{"n": fmt.Sprint(i)}})
		require.NoError(t, err)
	}

	out := filepath.Join(t.TempDir(), "audit.parquet")
	code, stdout, stderr := runCLI("export-audit", "--dsn", dsn, "--out", out)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "exported 3 records")
	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}
