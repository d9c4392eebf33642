package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when encoding principals.
type AddressPrefix string

const (
	// ArcadePrefix tags player, host and operator principals.
	ArcadePrefix AddressPrefix = "arc"
	// ModulePrefix tags module-owned vault and treasury accounts.
	ModulePrefix AddressPrefix = "arcmod"
)

// Address represents a 20-byte principal with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [20]byte
}

// NewAddress wraps b, which must be exactly 20 bytes long.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("address must be 20 bytes long, got %d", len(b))
	}
	var raw [20]byte
	copy(raw[:], b)
	return Address{prefix: prefix, bytes: raw}, nil
}

// FromRaw wraps an already sized principal.
func FromRaw(prefix AddressPrefix, raw [20]byte) Address {
	return Address{prefix: prefix, bytes: raw}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		return "0x" + hex.EncodeToString(a.bytes[:])
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		return "0x" + hex.EncodeToString(a.bytes[:])
	}
	return encoded
}

// Raw returns the 20-byte principal.
func (a Address) Raw() [20]byte { return a.bytes }

func (a Address) Bytes() []byte {
	out := a.bytes
	return out[:]
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ParsePrincipal accepts either a bech32 address or a 0x-prefixed hex string.
func ParsePrincipal(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("principal must not be empty")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return [20]byte{}, fmt.Errorf("invalid hex principal: %w", err)
		}
		addr, err := NewAddress(ArcadePrefix, raw)
		if err != nil {
			return [20]byte{}, err
		}
		return addr.Raw(), nil
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

// FormatPrincipal renders raw as an arc-prefixed bech32 address.
func FormatPrincipal(raw [20]byte) string {
	return FromRaw(ArcadePrefix, raw).String()
}

// ModuleAccount derives the deterministic account owned by a module, for
// example an escrow vault or a treasury.
func ModuleAccount(parts ...string) [20]byte {
	digest := crypto.Keccak256([]byte("module/" + strings.Join(parts, "/")))
	var raw [20]byte
	copy(raw[:], digest[12:])
	return raw
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Principal returns the raw 20-byte identity of the key.
func (k *PublicKey) Principal() [20]byte {
	return crypto.PubkeyToAddress(*k.PublicKey)
}

func (k *PublicKey) Address() Address {
	return FromRaw(ArcadePrefix, k.Principal())
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex encoded secp256k1 key, with or without 0x.
func PrivateKeyFromHex(value string) (*PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return PrivateKeyFromBytes(raw)
}
