package emulator

import "encoding/binary"

const (
	RAM_ALLOC_SIZE = 2 * 1024 * 1024 // Main PlayStation RAM: 2MB
)

// Flat memory shared by the CPU, the DMA and the peripherals it feeds.
// Whoever issued a transfer owns its address range until it completes
type RAM struct {
	Data []byte // RAM buffer, the length is a power of two
}

// Creates a new RAM instance (allocates `size` bytes and fills them with
// garbage values). `size` is rounded up to a power of two
func NewRAM(size uint32) *RAM {
	if size == 0 {
		size = RAM_ALLOC_SIZE
	}
	n := uint32(1)
	for n < size {
		n <<= 1
	}

	ram := &RAM{Data: make([]byte, n)}
	for i := 0; i < len(ram.Data); i++ {
		ram.Data[i] = 0xcd
	}
	return ram
}

// Address mask, accesses wrap around the end of RAM
func (ram *RAM) Mask() uint32 {
	return uint32(len(ram.Data)) - 1
}

// Loads a value of `size` at `offset`
func (ram *RAM) Load(offset uint32, size AccessSize) uint32 {
	var v uint32 = 0
	sizeI := uint32(size)
	offset &= ram.Mask()

	for i := uint32(0); i < sizeI; i++ {
		v |= uint32(ram.Data[(offset+i)&ram.Mask()]) << (i * 8)
	}
	return v
}

// Stores `val` of `size` into `offset`
func (ram *RAM) Store(offset uint32, size AccessSize, val uint32) {
	sizeI := uint32(size)
	offset &= ram.Mask()

	for i := uint32(0); i < sizeI; i++ {
		ram.Data[(offset+i)&ram.Mask()] = byte(val >> (i * 8))
	}
}

// Load a 32 bit little endian word at `offset`
func (ram *RAM) Load32(offset uint32) uint32 {
	offset &= ram.Mask() &^ 3
	return binary.LittleEndian.Uint32(ram.Data[offset:])
}

// Load a 16 bit little endian value at `offset`
func (ram *RAM) Load16(offset uint32) uint16 {
	offset &= ram.Mask() &^ 1
	return binary.LittleEndian.Uint16(ram.Data[offset:])
}

// Fetches the byte at `offset`
func (ram *RAM) Load8(offset uint32) byte {
	return ram.Data[offset&ram.Mask()]
}

// Store a 32 bit little endian word `val` into `offset`
func (ram *RAM) Store32(offset, val uint32) {
	offset &= ram.Mask() &^ 3
	binary.LittleEndian.PutUint32(ram.Data[offset:], val)
}

// Stores a 16 bit little endian value into `offset`
func (ram *RAM) Store16(offset uint32, val uint16) {
	offset &= ram.Mask() &^ 1
	binary.LittleEndian.PutUint16(ram.Data[offset:], val)
}

// Sets the byte at `offset`
func (ram *RAM) Store8(offset uint32, val byte) {
	ram.Data[offset&ram.Mask()] = val
}

// Copies `data` into RAM starting at `offset`
func (ram *RAM) Write(offset uint32, data []byte) {
	for i, b := range data {
		ram.Store8(offset+uint32(i), b)
	}
}
