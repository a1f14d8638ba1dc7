package signer

import (
	"go-substrate-client/types"

	"github.com/ChainSafe/gossamer/lib/crypto/sr25519"
	"github.com/pkg/errors"
)

type sr25519Signer struct {
	keypair *sr25519.Keypair
	account types.AccountID
}

// NewSr25519 builds a signer from a mini secret key, the seed form printed by
// substrate key tooling
func NewSr25519(seed []byte) (Signer, error) {
	if len(seed) != SeedLength {
		return nil, errors.Wrapf(ErrInvalidSeed, "sr25519 seed of %d bytes", len(seed))
	}
	kp, err := sr25519.NewKeypairFromSeed(seed)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSeed, err.Error())
	}

	s := &sr25519Signer{keypair: kp}
	copy(s.account[:], kp.Public().Encode())
	return s, nil
}

func (s *sr25519Signer) AccountID() types.AccountID {
	return s.account
}

func (s *sr25519Signer) Scheme() Scheme {
	return Sr25519
}

func (s *sr25519Signer) Sign(payload []byte) ([]byte, error) {
	sig, err := s.keypair.Sign(payload)
	if err != nil {
		return nil, errors.Wrap(err, "sr25519 sign")
	}
	return tagged(Sr25519, sig), nil
}
