package extrinsic

import (
	"math/big"

	"go-substrate-client/signer"
	"go-substrate-client/types"

	"github.com/itering/scale.go/utiles"
)

// Extrinsic is a signed transaction ready for submission. It is immutable and
// meant to be submitted once.
type Extrinsic struct {
	call      *Call
	signer    types.AccountID
	scheme    signer.Scheme
	signature []byte // scheme tagged
	nonce     uint64
	era       Era
	tip       *big.Int

	bytes []byte
	hash  types.Hash
}

func (e *Extrinsic) Call() *Call { return e.call }
func (e *Extrinsic) Signer() types.AccountID { return e.signer }
func (e *Extrinsic) Scheme() signer.Scheme { return e.scheme }
func (e *Extrinsic) Nonce() uint64 { return e.nonce }
func (e *Extrinsic) Era() Era { return e.era }
func (e *Extrinsic) Tip() *big.Int { return new(big.Int).Set(e.tip) }
func (e *Extrinsic) Signature() []byte { return append([]byte{}, e.signature...) }

// Bytes returns the length prefixed extrinsic as the node expects it
func (e *Extrinsic) Bytes() []byte {
	return append([]byte{}, e.bytes...)
}

// Hex returns the 0x prefixed hex form used by author_submitAndWatchExtrinsic
func (e *Extrinsic) Hex() string {
	return utiles.AddHex(utiles.BytesToHex(e.bytes))
}

// Hash is the blake2b-256 hash of Bytes, the key blocks list extrinsics under
func (e *Extrinsic) Hash() types.Hash {
	return e.hash
}
