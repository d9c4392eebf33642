package crypto

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	encoded := addr.String()
	if !strings.HasPrefix(encoded, "arc1") {
		t.Fatalf("unexpected prefix: %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Raw(), decoded.Raw())
	require.Equal(t, ArcadePrefix, decoded.Prefix())
}

func TestParsePrincipalAcceptsHexAndBech32(t *testing.T) {
	var raw [20]byte
	raw[19] = 0x42
	fromHex, err := ParsePrincipal("0x0000000000000000000000000000000000000042")
	require.NoError(t, err)
	require.Equal(t, raw, fromHex)

	fromBech, err := ParsePrincipal(FormatPrincipal(raw))
	require.NoError(t, err)
	require.Equal(t, raw, fromBech)

	_, err = ParsePrincipal("0x1234")
	require.Error(t, err)
	_, err = ParsePrincipal("   ")
	require.Error(t, err)
}

func TestModuleAccountDeterministic(t *testing.T) {
	a := ModuleAccount("escrow", "CCTR")
	b := ModuleAccount("escrow", "CCTR")
	c := ModuleAccount("escrow", "USDC")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "attestor.json")

	require.NoError(t, SaveToKeystore(path, key, "hunter2", LightKeystore))
	loaded, err := LoadFromKeystore(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func TestPrivateKeyFromHex(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	hexKey := "0x" + hex.EncodeToString(key.Bytes())
	parsed, err := PrivateKeyFromHex(hexKey)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Principal(), parsed.PubKey().Principal())
}
