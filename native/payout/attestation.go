package payout

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const signatureLength = 65

// Authorization is the attestor's instruction to pay Amount from Scope to
// Recipient. Nonce and Deadline make it single-use and time-bounded.
type Authorization struct {
	Scope     string
	Recipient [20]byte
	Amount    *big.Int
	Nonce     uint64
	// Deadline is a unix timestamp. Zero defers to the scope's deadline.
	Deadline int64
}

type signingPayload struct {
	Domain    string
	Scope     string
	Recipient [20]byte
	Amount    *big.Int
	Nonce     uint64
	Deadline  uint64
}

// Validate rejects structurally invalid authorizations.
func (a Authorization) Validate() error {
	if strings.TrimSpace(a.Scope) == "" {
		return fmt.Errorf("payout: %w: scope required", coreerrors.ErrInvalidArgument)
	}
	if a.Recipient == ([20]byte{}) {
		return fmt.Errorf("payout: %w: recipient required", coreerrors.ErrInvalidArgument)
	}
	if a.Amount == nil || a.Amount.Sign() <= 0 {
		return fmt.Errorf("payout: %w: amount must be positive", coreerrors.ErrInvalidArgument)
	}
	if a.Deadline < 0 {
		return fmt.Errorf("payout: %w: deadline must not be negative", coreerrors.ErrInvalidArgument)
	}
	return nil
}

// Digest returns the keccak256 hash an attestor signs. The domain binds the
// authorization to one module instance.
func (a Authorization) Digest(domain string) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	encoded, err := rlp.EncodeToBytes(signingPayload{
		Domain:    domain,
		Scope:     strings.TrimSpace(a.Scope),
		Recipient: a.Recipient,
		Amount:    a.Amount,
		Nonce:     a.Nonce,
		Deadline:  uint64(a.Deadline),
	})
	if err != nil {
		return nil, fmt.Errorf("payout: encode authorization: %w", err)
	}
	return ethcrypto.Keccak256(encoded), nil
}

// Sign produces a 65-byte recoverable secp256k1 signature over the digest.
func Sign(key *crypto.PrivateKey, domain string, auth Authorization) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, fmt.Errorf("payout: %w: signing key required", coreerrors.ErrInvalidArgument)
	}
	digest, err := auth.Digest(domain)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest, key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("payout: sign authorization: %w", err)
	}
	return sig, nil
}

// RecoverSigner returns the principal that produced sig over auth.
func RecoverSigner(domain string, auth Authorization, sig []byte) ([20]byte, error) {
	var signer [20]byte
	if len(sig) != signatureLength {
		return signer, fmt.Errorf("payout: %w: signature must be %d bytes", coreerrors.ErrUnauthorized, signatureLength)
	}
	digest, err := auth.Digest(domain)
	if err != nil {
		return signer, err
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return signer, fmt.Errorf("payout: %w: invalid signature", coreerrors.ErrUnauthorized)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
