package signer

import (
	"encoding/hex"
	"testing"

	"go-substrate-client/types"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
)

const (
	// //Alice mini secret and public key from the development mnemonic
	aliceSeed   = "e5be9a5092b81bca64be81d212e7f2f9eba183bb7a90954f7b76361f6edb5c0a"
	alicePublic = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

func seed(t *testing.T) []byte {
	b, err := hex.DecodeString(aliceSeed)
	require.NoError(t, err)
	return b
}

func TestSr25519(t *testing.T) {
	s, err := NewSr25519(seed(t))
	require.NoError(t, err)

	assert.Equal(t, Sr25519, s.Scheme())
	account := s.AccountID()
	assert.Equal(t, alicePublic, hex.EncodeToString(account[:]))

	sig, err := s.Sign([]byte("payload"))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Equal(t, byte(Sr25519), sig[0])

	kp := s.(*sr25519Signer).keypair
	ok, err := kp.Public().Verify([]byte("payload"), sig[1:])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEd25519(t *testing.T) {
	s, err := NewEd25519(seed(t))
	require.NoError(t, err)
	assert.Equal(t, Ed25519, s.Scheme())

	payload := []byte("payload")
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	require.Len(t, sig, 1+Ed25519.SignatureLength())
	assert.Equal(t, byte(Ed25519), sig[0])

	account := s.AccountID()
	assert.True(t, ed25519.Verify(ed25519.PublicKey(account[:]), payload, sig[1:]))
	assert.False(t, ed25519.Verify(ed25519.PublicKey(account[:]), []byte("other"), sig[1:]))
}

func TestEcdsa(t *testing.T) {
	s, err := NewEcdsa(seed(t))
	require.NoError(t, err)
	assert.Equal(t, Ecdsa, s.Scheme())

	public := s.(*ecdsaSigner).PublicKey()
	require.Len(t, public, 33)
	assert.Equal(t, types.AccountID(types.Blake2_256(public)), s.AccountID())

	payload := []byte("payload")
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	require.Len(t, sig, 1+Ecdsa.SignatureLength())
	assert.Equal(t, byte(Ecdsa), sig[0])

	// rebuild the compact form r ++ s ++ v was derived from and recover the key
	compact := append([]byte{sig[65] + compactRecoveryOffset}, sig[1:65]...)
	hash := types.Blake2_256(payload)
	recovered, compressed, err := ecdsa.RecoverCompact(compact, hash[:])
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Equal(t, public, recovered.SerializeCompressed())
}

func TestNewRejectsBadSeeds(t *testing.T) {
	for _, scheme := range []Scheme{Ed25519, Sr25519, Ecdsa} {
		_, err := New(scheme, []byte{1, 2, 3})
		assert.True(t, errors.Is(err, ErrInvalidSeed), scheme.String())
	}
	_, err := New(Ecdsa, make([]byte, SeedLength))
	assert.True(t, errors.Is(err, ErrInvalidSeed))

	_, err = New(Scheme(9), seed(t))
	assert.Error(t, err)

	s, err := New(Sr25519, seed(t))
	require.NoError(t, err)
	assert.Equal(t, Sr25519, s.Scheme())
}
