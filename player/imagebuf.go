package player

const (
	VRAM_WIDTH       = 1024 // VRAM width in halfwords
	VRAM_HEIGHT      = 512  // VRAM height in lines
	VRAM_SIZE_PIXELS = VRAM_WIDTH * VRAM_HEIGHT
)

// A 2 dimensional unsigned vector
type Vec2U struct {
	X, Y uint16
}

// Position of an image transfer between the GPU and VRAM. The image is
// walked one halfword at a time, row by row, wrapping around the edges of
// VRAM
type ImageBuffer struct {
	Position   Vec2U  // Top-left coordinates in VRAM
	Resolution Vec2U  // Image resolution, in halfwords
	Index      uint32 // Position in the image
}

func (buf *ImageBuffer) Reset(x, y, width, height uint16) {
	buf.Position.X = x
	buf.Position.Y = y
	buf.Resolution.X = width
	buf.Resolution.Y = height
	buf.Index = 0
}

// Number of words needed to move the whole image
func (buf *ImageBuffer) Words() uint32 {
	return (uint32(buf.Resolution.X)*uint32(buf.Resolution.Y) + 1) / 2
}

// Returns true once every halfword of the image went through
func (buf *ImageBuffer) Done() bool {
	return buf.Index >= uint32(buf.Resolution.X)*uint32(buf.Resolution.Y)
}

// Returns the VRAM index of the next halfword and advances
func (buf *ImageBuffer) next() int {
	w := uint32(buf.Resolution.X)
	x := (uint32(buf.Position.X) + buf.Index%w) % VRAM_WIDTH
	y := (uint32(buf.Position.Y) + buf.Index/w) % VRAM_HEIGHT
	buf.Index++
	return int(y*VRAM_WIDTH + x)
}

// Stores the two halfwords of `word` into `vram`, or'ed with `mask`
func (buf *ImageBuffer) PushWord(vram []uint16, word uint32, mask uint16) {
	for _, half := range [2]uint16{uint16(word), uint16(word >> 16)} {
		if buf.Done() {
			return
		}
		vram[buf.next()] = half | mask
	}
}

// Reads the next two halfwords from `vram`
func (buf *ImageBuffer) PopWord(vram []uint16) uint32 {
	var word uint32
	for i := 0; i < 2; i++ {
		if buf.Done() {
			break
		}
		word |= uint32(vram[buf.next()]) << (16 * i)
	}
	return word
}
