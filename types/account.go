package types

import (
	"bytes"
	"encoding/hex"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

type (
	// AccountID is a 32 byte account public key or key hash
	AccountID [32]byte

	// SS58Prefix identifies the network an address is formatted for
	SS58Prefix uint16
)

const (
	PolkadotPrefix  SS58Prefix = 0
	KusamaPrefix    SS58Prefix = 2
	SubstratePrefix SS58Prefix = 42

	ss58MaxPrefix = 1<<14 - 1
)

var (
	ErrInvalidAddress = errors.New("types: invalid ss58 address")
	ss58Preamble      = []byte("SS58PRE")
)

func NewAccountID(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != len(id) {
		return id, errors.Wrapf(ErrInvalidAddress, "account id of %d bytes", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id AccountID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// SS58 renders the account in SS58 format for prefix
func (id AccountID) SS58(prefix SS58Prefix) string {
	payload := append(ss58PrefixBytes(prefix), id[:]...)
	return base58.Encode(append(payload, ss58Checksum(payload)...))
}

func (id AccountID) String() string {
	return id.SS58(SubstratePrefix)
}

// ParseSS58 decodes an SS58 address holding a 32 byte account and returns it
// with its network prefix
func ParseSS58(address string) (AccountID, SS58Prefix, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return AccountID{}, 0, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	if len(raw) < 1 {
		return AccountID{}, 0, ErrInvalidAddress
	}

	var (
		prefix    SS58Prefix
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix, prefixLen = SS58Prefix(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return AccountID{}, 0, ErrInvalidAddress
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		prefix, prefixLen = SS58Prefix(lower)|SS58Prefix(upper)<<8, 2
	default:
		return AccountID{}, 0, errors.Wrapf(ErrInvalidAddress, "reserved prefix byte %d", raw[0])
	}

	if len(raw) != prefixLen+32+2 {
		return AccountID{}, 0, errors.Wrapf(ErrInvalidAddress, "payload of %d bytes", len(raw))
	}
	body := raw[:prefixLen+32]
	if !bytes.Equal(ss58Checksum(body), raw[prefixLen+32:]) {
		return AccountID{}, 0, errors.Wrap(ErrInvalidAddress, "checksum mismatch")
	}

	var id AccountID
	copy(id[:], raw[prefixLen:prefixLen+32])
	return id, prefix, nil
}

func ss58PrefixBytes(prefix SS58Prefix) []byte {
	p := uint16(prefix) & ss58MaxPrefix
	if p < 64 {
		return []byte{byte(p)}
	}
	return []byte{
		byte((p&0xfc)>>2) | 0x40,
		byte(p>>8) | byte((p&0x03)<<6),
	}
}

func ss58Checksum(payload []byte) []byte {
	h := blake2b.Sum512(append(append([]byte{}, ss58Preamble...), payload...))
	return h[:2]
}
