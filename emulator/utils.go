package emulator

import "github.com/zeozeozeo/psxperiph/logger"

type AccessSize uint32

// Types of accesses supported by the PlayStation architecture

var (
	ACCESS_BYTE     AccessSize = 1 // 8 bit
	ACCESS_HALFWORD AccessSize = 2 // 16 bit
	ACCESS_WORD     AccessSize = 4 // 32 bit
)

// Byte lane mask of a word register touched by an access of `size` at byte
// address `addr`. Register blocks receive values already shifted into these
// lanes
func laneMask(size AccessSize, addr uint32) uint32 {
	shift := (addr & 3) * 8
	switch size {
	case ACCESS_BYTE:
		return 0xff << shift
	case ACCESS_HALFWORD:
		return 0xffff << shift
	default:
		return 0xffffffff
	}
}

// Replaces the bits of `old` selected by `mask` with the ones in `val`
func combine(old, val, mask uint32) uint32 {
	return (old &^ mask) | (val & mask)
}

func oneIfTrue(val bool) uint32 {
	if val {
		return 1
	}
	return 0
}

// Sign extends the low `bits` bits of `val`
func signExtend(val uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(val<<shift) >> shift
}

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Reports an access to a register that doesn't exist in a block
func logUnhandled(tag, access string, offset uint32) {
	logger.Logf(logger.Allow, tag, "unhandled %s of register %d", access, offset)
}
