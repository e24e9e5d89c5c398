package emulator

var (
	// RAM, 2MB mirrored 4 times
	RAM_RANGE = NewRange(0x00000000, 0x800000)
	// SIO0: controllers and memory cards
	SIO0_RANGE = NewRange(0x1f801040, 0x10)
	// SIO1: serial port
	SIO1_RANGE = NewRange(0x1f801050, 0x10)
	// Interrupt status and mask
	IRQ_CONTROL = NewRange(0x1f801070, 8)
	// Direct Memory Access registers
	DMA_RANGE = NewRange(0x1f801080, 0x80)
	// Root counters, 0x10 bytes per counter
	TIMERS_RANGE = NewRange(0x1f801100, 0x30)
	// Macroblock decoder
	MDEC_RANGE = NewRange(0x1f801820, 8)
)

// Mask array used to strip the region bits of an address. The mask is
// selected using the 3 MSBs of the address so each entry effectively
// matches 512MB of the address space. KSEG2 is not touched since it doesn't
// share anything with the other regions
var REGION_MASK = [8]uint32{
	// KUSEG: 2048MB
	0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff,
	// KSEG0: 512MB
	0x7fffffff,
	// KSEG1: 512MB
	0x1fffffff,
	// KSEG2: 1024MB
	0xffffffff, 0xffffffff,
}

// Masks a CPU address to remove the region bits
func maskRegion(addr uint32) uint32 {
	return addr & REGION_MASK[addr>>29]
}

type Range struct {
	Start  uint32 // Start address
	Length uint32 // Length of the mapping
}

func NewRange(start uint32, length uint32) Range {
	return Range{Start: start, Length: length}
}

// Returns whether `addr` is located inside this range
func (r *Range) Contains(addr uint32) bool {
	return addr >= r.Start && addr < r.Start+r.Length
}

// Returns the offset between `addr` and the `Start` of the range.
// Does not check if the range contains the address, so if `addr`
// is smaller than `Start`, there will be an overflow
func (r *Range) Offset(addr uint32) uint32 {
	return addr - r.Start
}
