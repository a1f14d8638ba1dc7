package types

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/crypto/blake2b"
)

// Blake2_128 is the 16 byte blake2b digest used by the Blake2_128 storage hashers
func Blake2_128(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return h.Sum(nil)
}

func Blake2_256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Twox64 is xxhash64 with seed 0, little endian
func Twox64(data []byte) []byte {
	return twox(data, 1)
}

// Twox128 concatenates xxhash64 with seeds 0 and 1
func Twox128(data []byte) []byte {
	return twox(data, 2)
}

func Twox256(data []byte) []byte {
	return twox(data, 4)
}

func twox(data []byte, rounds int) []byte {
	out := make([]byte, 0, 8*rounds)
	for seed := 0; seed < rounds; seed++ {
		out = binary.LittleEndian.AppendUint64(out, xxhash.Checksum64S(data, uint64(seed)))
	}
	return out
}
