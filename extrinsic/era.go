package extrinsic

import (
	"fmt"
	"math/bits"

	"go-substrate-client/codec"

	"github.com/pkg/errors"
)

const (
	minEraPeriod = 4
	maxEraPeriod = 1 << 16
)

// Era is the validity window of a transaction. The zero value is immortal.
type Era struct {
	Period uint64
	Phase  uint64
}

// Immortal is valid forever and anchors to the genesis block
var Immortal = Era{}

// NewMortalEra returns an era starting around block current that lasts for
// period blocks. The period is rounded up to a power of two in [4, 65536] and
// the phase is quantized the way the runtime expects.
func NewMortalEra(current, period uint64) Era {
	if period > maxEraPeriod {
		period = maxEraPeriod
	}
	if period&(period-1) != 0 {
		period = 1 << bits.Len64(period)
	}
	if period < minEraPeriod {
		period = minEraPeriod
	}

	phase := current % period
	quantize := quantizeFactor(period)
	return Era{Period: period, Phase: phase / quantize * quantize}
}

func quantizeFactor(period uint64) uint64 {
	if f := period >> 12; f > 1 {
		return f
	}
	return 1
}

func (e Era) IsImmortal() bool {
	return e.Period == 0
}

// Birth returns the first block of the window that includes current
func (e Era) Birth(current uint64) uint64 {
	if e.IsImmortal() {
		return 0
	}
	if current < e.Phase {
		current = e.Phase
	}
	return (current-e.Phase)/e.Period*e.Period + e.Phase
}

// Death returns the first block at which a transaction in this era is invalid
func (e Era) Death(current uint64) uint64 {
	if e.IsImmortal() {
		return ^uint64(0)
	}
	return e.Birth(current) + e.Period
}

// Bytes encodes the era: 0x00 for immortal, two bytes otherwise
func (e Era) Bytes() ([]byte, error) {
	if e.IsImmortal() {
		return []byte{0}, nil
	}
	if e.Period < minEraPeriod || e.Period > maxEraPeriod || e.Period&(e.Period-1) != 0 || e.Phase >= e.Period {
		return nil, errors.Wrapf(ErrInvalidEra, "period %d phase %d", e.Period, e.Phase)
	}
	quantize := quantizeFactor(e.Period)
	low := uint64(bits.TrailingZeros64(e.Period) - 1)
	if low < 1 {
		low = 1
	}
	if low > 15 {
		low = 15
	}
	encoded := uint16(low | (e.Phase/quantize)<<4)
	return []byte{byte(encoded), byte(encoded >> 8)}, nil
}

// DecodeEra reads an era from r
func DecodeEra(r *codec.Reader) (Era, error) {
	first, err := r.ReadByte()
	if err != nil {
		return Era{}, err
	}
	if first == 0 {
		return Immortal, nil
	}
	second, err := r.ReadByte()
	if err != nil {
		return Era{}, err
	}

	encoded := uint64(first) | uint64(second)<<8
	period := uint64(2) << (encoded % 16)
	phase := (encoded >> 4) * quantizeFactor(period)
	if period < minEraPeriod || phase >= period {
		return Era{}, errors.Wrapf(ErrInvalidEra, "encoded %#04x", encoded)
	}
	return Era{Period: period, Phase: phase}, nil
}

func (e Era) String() string {
	if e.IsImmortal() {
		return "immortal"
	}
	return fmt.Sprintf("mortal(period %d, phase %d)", e.Period, e.Phase)
}
