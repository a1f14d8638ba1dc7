package extrinsic

import (
	"math/big"

	"go-substrate-client/codec"
	"go-substrate-client/metadata"
	"go-substrate-client/signer"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

const (
	signedFlag = 0x80

	// payloads longer than this are signed as their blake2b-256 hash
	maxRawPayload = 256
)

type (
	// Params are the caller supplied parts of a signed extrinsic. The nonce
	// comes from on-chain account state; the builder never allocates one.
	Params struct {
		Nonce     uint64
		Tip       *big.Int
		Era       Era
		BlockHash types.Hash // anchor of a mortal era, ignored for immortal
	}

	// Builder signs calls against one metadata snapshot and chain
	Builder struct {
		snapshot *metadata.Snapshot
		genesis  types.Hash
	}

	extensionParts struct {
		extra      []byte
		additional []byte
	}
)

func NewBuilder(s *metadata.Snapshot, genesis types.Hash) *Builder {
	return &Builder{snapshot: s, genesis: genesis}
}

// Snapshot returns the metadata snapshot the builder encodes against
func (b *Builder) Snapshot() *metadata.Snapshot {
	return b.snapshot
}

// Build signs call with s and returns the immutable, single use extrinsic
func (b *Builder) Build(call *Call, s signer.Signer, p Params) (*Extrinsic, error) {
	parts, err := b.extensions(call, p)
	if err != nil {
		return nil, err
	}

	payload := signingPayload(call, parts)
	signature, err := s.Sign(payload)
	if err != nil {
		return nil, errors.Wrap(err, "extrinsic: sign payload")
	}

	info := b.snapshot.Metadata.Extrinsic
	account := s.AccountID()
	address, err := encodeAddress(info.Address, account)
	if err != nil {
		return nil, err
	}
	sig, err := encodeSignature(info.Signature, s.Scheme(), signature)
	if err != nil {
		return nil, err
	}

	body := codec.NewWriter()
	_ = body.WriteByte(signedFlag | info.Version)
	_, _ = body.Write(address)
	_, _ = body.Write(sig)
	_, _ = body.Write(parts.extra)
	_, _ = body.Write(call.data)

	encoded := codec.EncodeCompact(uint64(body.Len()))
	encoded = append(encoded, body.Bytes()...)

	tip := new(big.Int)
	if p.Tip != nil {
		tip.Set(p.Tip)
	}
	return &Extrinsic{
		call:      call,
		signer:    account,
		scheme:    s.Scheme(),
		signature: append([]byte{}, signature...),
		nonce:     p.Nonce,
		era:       p.Era,
		tip:       tip,
		bytes:     encoded,
		hash:      types.Blake2_256(encoded),
	}, nil
}

// SigningPayload returns the bytes a signer signs for call, after hashing
// payloads that exceed 256 bytes. Signed extension data follows the order the
// metadata lists the extensions in.
func (b *Builder) SigningPayload(call *Call, p Params) ([]byte, error) {
	parts, err := b.extensions(call, p)
	if err != nil {
		return nil, err
	}
	return signingPayload(call, parts), nil
}

func signingPayload(call *Call, parts extensionParts) []byte {
	payload := make([]byte, 0, len(call.data)+len(parts.extra)+len(parts.additional))
	payload = append(payload, call.data...)
	payload = append(payload, parts.extra...)
	payload = append(payload, parts.additional...)
	if len(payload) > maxRawPayload {
		hash := types.Blake2_256(payload)
		return hash[:]
	}
	return payload
}

// extensions encodes the extra and additional signed data of every signed
// extension. The order, and so the position of nonce, tip and era in the
// signing payload, is the order the runtime metadata lists the extensions in.
func (b *Builder) extensions(call *Call, p Params) (extensionParts, error) {
	var parts extensionParts
	if call.generation != b.snapshot.Generation {
		return parts, &metadata.StaleError{Generation: call.generation, Current: b.snapshot.Generation}
	}
	if !p.Era.IsImmortal() && p.BlockHash.IsZero() {
		return parts, ErrMissingAnchor
	}

	era, err := p.Era.Bytes()
	if err != nil {
		return parts, err
	}
	anchor := b.genesis
	if !p.Era.IsImmortal() {
		anchor = p.BlockHash
	}
	tip := new(big.Int)
	if p.Tip != nil {
		tip.Set(p.Tip)
	}
	version := b.snapshot.Version

	extra := codec.NewWriter()
	additional := codec.NewWriter()
	for _, ext := range b.snapshot.Metadata.Extrinsic.SignedExtensions {
		var (
			extraValue, additionalValue *codec.Value
			rawExtra                    []byte
		)
		switch ext.Identifier {
		case "CheckMortality", "CheckEra":
			rawExtra = era
			additionalValue = value(codec.Bytes(anchor[:]))
		case "CheckNonce":
			extraValue = value(codec.Uint(p.Nonce))
		case "ChargeTransactionPayment":
			extraValue = value(codec.BigInt(tip))
		case "ChargeAssetTxPayment":
			extraValue = value(codec.Composite(
				codec.Named("tip", codec.BigInt(tip)),
				codec.Named("asset_id", codec.VariantOf("None")),
			))
		case "CheckMetadataHash":
			extraValue = value(codec.Composite(codec.Named("mode", codec.VariantOf("Disabled"))))
			additionalValue = value(codec.VariantOf("None"))
		case "CheckSpecVersion":
			additionalValue = value(codec.Uint(uint64(version.SpecVersion)))
		case "CheckTxVersion":
			additionalValue = value(codec.Uint(uint64(version.TransactionVersion)))
		case "CheckGenesis":
			additionalValue = value(codec.Bytes(b.genesis[:]))
		default:
			if !ext.Type.IsEmpty() || !ext.AdditionalSigned.IsEmpty() {
				return parts, errors.Wrapf(ErrUnsupportedExtension, "%s", ext.Identifier)
			}
		}

		if rawExtra != nil {
			_, _ = extra.Write(rawExtra)
		} else if err := encodeExtension(extra, ext.Identifier, ext.Type, extraValue); err != nil {
			return parts, err
		}
		if err := encodeExtension(additional, ext.Identifier, ext.AdditionalSigned, additionalValue); err != nil {
			return parts, err
		}
	}

	parts.extra = extra.Bytes()
	parts.additional = additional.Bytes()
	return parts, nil
}

func value(v codec.Value) *codec.Value {
	return &v
}

func encodeExtension(w *codec.Writer, id string, t *codec.TypeDescriptor, v *codec.Value) error {
	if t == nil || t.IsEmpty() {
		return nil
	}
	if v == nil {
		return errors.Wrapf(ErrUnsupportedExtension, "%s carries %s", id, t.Name())
	}
	if err := codec.EncodeTo(w, t, *v); err != nil {
		return errors.Wrapf(err, "extrinsic: signed extension %s", id)
	}
	return nil
}

// encodeAddress writes the signer address the way the runtime's address type
// declares it: the Id variant of a MultiAddress, or the raw account id
func encodeAddress(t *codec.TypeDescriptor, account types.AccountID) ([]byte, error) {
	if t != nil && t.Kind == codec.TypeVariant {
		id, ok := t.VariantByName("Id")
		if !ok {
			return nil, errors.Errorf("extrinsic: address type %s has no Id variant", t.Name())
		}
		return append([]byte{id.Index}, account[:]...), nil
	}
	return append([]byte{}, account[:]...), nil
}

// encodeSignature keeps the scheme tag when the runtime signature type is an
// enum over schemes, and strips it otherwise
func encodeSignature(t *codec.TypeDescriptor, scheme signer.Scheme, signature []byte) ([]byte, error) {
	if len(signature) != 1+scheme.SignatureLength() {
		return nil, errors.Errorf("extrinsic: %s signature of %d bytes", scheme, len(signature))
	}
	if t == nil || t.Kind != codec.TypeVariant {
		return append([]byte{}, signature[1:]...), nil
	}
	if _, ok := t.VariantByIndex(signature[0]); !ok {
		return nil, errors.Errorf("extrinsic: runtime signature type has no %s variant", scheme)
	}
	return append([]byte{}, signature...), nil
}
