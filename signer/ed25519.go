package signer

import (
	"go-substrate-client/types"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"
)

type ed25519Signer struct {
	key     ed25519.PrivateKey
	account types.AccountID
}

func NewEd25519(seed []byte) (Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidSeed, "ed25519 seed of %d bytes", len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)

	s := &ed25519Signer{key: key}
	copy(s.account[:], key.Public().(ed25519.PublicKey))
	return s, nil
}

func (s *ed25519Signer) AccountID() types.AccountID {
	return s.account
}

func (s *ed25519Signer) Scheme() Scheme {
	return Ed25519
}

func (s *ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return tagged(Ed25519, ed25519.Sign(s.key, payload)), nil
}
