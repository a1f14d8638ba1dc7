// Package signer provides the key schemes extrinsics can be signed with.
// Signatures are returned in MultiSignature form: a scheme tag byte followed
// by the raw signature.
package signer

import (
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

type (
	Scheme uint8

	// Signer signs extrinsic payloads on behalf of one account
	Signer interface {
		AccountID() types.AccountID
		Scheme() Scheme
		Sign(payload []byte) ([]byte, error)
	}
)

const (
	Ed25519 Scheme = iota
	Sr25519
	Ecdsa
)

// SeedLength is the length of the raw secret seed every scheme accepts
const SeedLength = 32

var ErrInvalidSeed = errors.New("signer: invalid seed")

func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "ed25519"
	case Sr25519:
		return "sr25519"
	case Ecdsa:
		return "ecdsa"
	}
	return "unknown"
}

// SignatureLength returns the untagged signature length of the scheme
func (s Scheme) SignatureLength() int {
	if s == Ecdsa {
		return 65
	}
	return 64
}

// New builds a signer of the given scheme from a 32 byte seed
func New(scheme Scheme, seed []byte) (Signer, error) {
	switch scheme {
	case Ed25519:
		return NewEd25519(seed)
	case Sr25519:
		return NewSr25519(seed)
	case Ecdsa:
		return NewEcdsa(seed)
	}
	return nil, errors.Errorf("signer: unknown scheme %d", scheme)
}

func tagged(scheme Scheme, sig []byte) []byte {
	return append([]byte{byte(scheme)}, sig...)
}
