package signer

import (
	"go-substrate-client/types"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
)

// compact signatures carry 27 + 4 (compressed key) + recovery id in front
const compactRecoveryOffset = 27 + 4

type ecdsaSigner struct {
	key     *secp256k1.PrivateKey
	account types.AccountID
}

// NewEcdsa builds a secp256k1 signer. The account id is the blake2b-256 hash
// of the compressed public key.
func NewEcdsa(seed []byte) (Signer, error) {
	if len(seed) != SeedLength {
		return nil, errors.Wrapf(ErrInvalidSeed, "ecdsa seed of %d bytes", len(seed))
	}
	key := secp256k1.PrivKeyFromBytes(seed)
	if key.Key.IsZero() {
		return nil, errors.Wrap(ErrInvalidSeed, "zero ecdsa key")
	}
	return &ecdsaSigner{
		key:     key,
		account: types.Blake2_256(key.PubKey().SerializeCompressed()),
	}, nil
}

func (s *ecdsaSigner) AccountID() types.AccountID {
	return s.account
}

func (s *ecdsaSigner) Scheme() Scheme {
	return Ecdsa
}

// Sign returns r ++ s ++ v over blake2b-256(payload)
func (s *ecdsaSigner) Sign(payload []byte) ([]byte, error) {
	hash := types.Blake2_256(payload)
	compact := ecdsa.SignCompact(s.key, hash[:], true)

	sig := make([]byte, 0, 65)
	sig = append(sig, compact[1:]...)
	sig = append(sig, compact[0]-compactRecoveryOffset)
	return tagged(Ecdsa, sig), nil
}

// PublicKey returns the compressed secp256k1 public key
func (s *ecdsaSigner) PublicKey() []byte {
	return s.key.PubKey().SerializeCompressed()
}
