package types

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/itering/scale.go/utiles"
	"github.com/pkg/errors"
)

// Hash is a 32 byte block or extrinsic hash
type Hash [32]byte

var ErrInvalidHash = errors.New("types: invalid hash")

// NewHash copies b into a Hash; b must be 32 bytes long
func NewHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != len(h) {
		return h, errors.Wrapf(ErrInvalidHash, "%d bytes", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a 0x prefixed or bare hex string
func HashFromHex(s string) (Hash, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if _, err := hex.DecodeString(trimmed); err != nil {
		return Hash{}, errors.Wrapf(ErrInvalidHash, "%q", s)
	}
	return NewHash(utiles.HexToBytes(trimmed))
}

func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
