package emulator

import (
	"errors"
	"math"

	"github.com/zeozeozeo/psxperiph/logger"
)

// Macroblock decoder state
type MdecState int

const (
	MDEC_STATE_IDLE             MdecState = iota // Waiting for a command
	MDEC_STATE_UNPACKING        MdecState = iota // Reading run-length codes
	MDEC_STATE_COLOR_CONVERTING MdecState = iota // Building the output tile
	MDEC_STATE_DRAINING         MdecState = iota // Output tile is being read
)

// Output pixel depth of a decode command
type MdecDepth uint32

const (
	MDEC_DEPTH_4BIT  MdecDepth = 0 // Monochrome, not supported
	MDEC_DEPTH_8BIT  MdecDepth = 1 // Monochrome, not supported
	MDEC_DEPTH_24BIT MdecDepth = 2
	MDEC_DEPTH_15BIT MdecDepth = 3
)

// Command opcodes (bits [31:29] of a command word)
const (
	MDEC_CMD_DECODE uint32 = 1
	MDEC_CMD_QUANT  uint32 = 2
	MDEC_CMD_COSINE uint32 = 3
)

const (
	MDEC_REG_DATA    uint32 = 0 // Command in, pixels out
	MDEC_REG_CONTROL uint32 = 1 // Control in, status out

	// Ends a block, or a macroblock when it's the first code of a block
	MDEC_END_OF_BLOCK uint16 = 0xfe00
	// Semi transparency bit of 15 bit pixels
	MDEC_STP uint16 = 0x8000
)

var ErrMdecOutOfData = errors.New("mdec: ran out of data")

// padding at the very end of the bitstream
var errMdecEndOfStream = errors.New("mdec: end of stream")

// Destination of each coefficient of the bitstream, in row major order
var ZigZag = [64]uint8{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Standard luminance quantization table, row major
var defaultQuant = [64]int32{
	2, 16, 19, 22, 26, 27, 29, 34,
	16, 16, 22, 24, 27, 29, 34, 37,
	19, 22, 26, 27, 29, 34, 34, 38,
	22, 22, 26, 27, 29, 34, 37, 40,
	22, 26, 27, 29, 32, 35, 40, 48,
	26, 27, 29, 32, 35, 40, 48, 58,
	26, 27, 29, 34, 38, 46, 56, 69,
	27, 29, 35, 38, 46, 56, 69, 83,
}

// Returns the 16 bit fixed point DCT matrix: cos[u*8+x]
func DefaultCosineTable() [64]int32 {
	var table [64]int32
	for u := 0; u < 8; u++ {
		c := 1.0
		if u == 0 {
			c = 1 / math.Sqrt2
		}
		for x := 0; x < 8; x++ {
			v := 32768 * c * math.Cos(float64((2*x+1)*u)*math.Pi/16)
			table[u*8+x] = int32(math.Round(v))
		}
	}
	return table
}

// Returns the standard quantization table in stream (zig-zag) order
func DefaultQuantTable() [64]int32 {
	var table [64]int32
	for z, i := range ZigZag {
		table[z] = defaultQuant[i]
	}
	return table
}

// Macroblock decoder. Compressed data comes in through DMA0, decoded 16x16
// pixel tiles go out through DMA1
type MDEC struct {
	Command   uint32    // Last command word
	Control   uint32    // Last control word (DMA request enables)
	State     MdecState // Decoder state
	Depth     MdecDepth // Output depth of the decode command
	Stp       bool      // Set the semi transparency bit on 15 bit pixels
	Cursor    uint32    // RAM address of the next code of the bitstream
	Remaining int32     // Bytes left in the bitstream
	Block     int       // Block being unpacked (0 Cr, 1 Cb, 2-5 Y)

	QuantY  [64]int32 // Luminance quantization table, zig-zag order
	QuantUV [64]int32 // Chrominance quantization table, zig-zag order
	Cosine  [64]int32 // DCT matrix
	// Precomputed products of two rows of `Cosine`, one 8x8 basis image
	// per output pixel
	Basis [4096]int32

	Blocks [6][64]int32 // Coefficients, then samples after the IDCT
	Tile   [192]uint32  // Output tile
	Words  int          // Number of words in `Tile`
	Drain  int          // Next word of `Tile` to be read

	ram *RAM
}

func NewMDEC(ram *RAM) *MDEC {
	mdec := &MDEC{ram: ram}
	mdec.Reset()
	return mdec
}

func (mdec *MDEC) Reset() {
	mdec.Command = 0
	mdec.Control = 0
	mdec.State = MDEC_STATE_IDLE
	mdec.Depth = MDEC_DEPTH_15BIT
	mdec.Stp = false
	mdec.Cursor = 0
	mdec.Remaining = 0
	mdec.Block = 0
	mdec.Words = 0
	mdec.Drain = 0
	mdec.QuantY = DefaultQuantTable()
	mdec.QuantUV = DefaultQuantTable()
	mdec.SetCosineTable(DefaultCosineTable())
}

// Loads the DCT matrix and precomputes the IDCT basis from it
func (mdec *MDEC) SetCosineTable(table [64]int32) {
	mdec.Cosine = table
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for v := 0; v < 8; v++ {
				for u := 0; u < 8; u++ {
					// 2.30 fixed point product brought down to 2.21
					p := (int64(table[u*8+x]) * int64(table[v*8+y])) >> 9
					mdec.Basis[(y*8+x)*64+v*8+u] = int32(p)
				}
			}
		}
	}
}

// Handles a write to the command register
func (mdec *MDEC) SetCommand(val uint32) {
	mdec.Command = val

	switch val >> 29 {
	case MDEC_CMD_DECODE:
		depth := MdecDepth((val >> 27) & 3)
		if depth != MDEC_DEPTH_24BIT && depth != MDEC_DEPTH_15BIT {
			logger.Logf(logger.Allow, "mdec", "unsupported monochrome output (command 0x%08x)", val)
			mdec.Command = 0
			return
		}
		mdec.Depth = depth
		mdec.Stp = (val>>25)&1 != 0
	case MDEC_CMD_QUANT, MDEC_CMD_COSINE:
	default:
		logger.Logf(logger.Allow, "mdec", "unknown command 0x%08x", val)
		mdec.Command = 0
	}
}

// Handles a write to the control register
func (mdec *MDEC) SetControl(val uint32) {
	if val&(1<<31) != 0 {
		mdec.Reset()
	}
	mdec.Control = val & (3 << 29)
}

// Status register
func (mdec *MDEC) Status() uint32 {
	var r uint32

	r |= oneIfTrue(mdec.Drain >= mdec.Words) << 31
	r |= oneIfTrue(mdec.State != MDEC_STATE_IDLE) << 29
	r |= oneIfTrue(mdec.Control&(1<<30) != 0 && mdec.Command>>29 != 0) << 28
	r |= oneIfTrue(mdec.Control&(1<<29) != 0 && mdec.State != MDEC_STATE_IDLE) << 27
	r |= uint32(mdec.Depth) << 25
	r |= oneIfTrue(mdec.Stp) << 23
	r |= uint32(mdec.Block) << 16
	r |= uint32((mdec.Remaining/4)-1) & 0xffff

	return r
}

// DMA0: takes the parameters of the last command from RAM
func (mdec *MDEC) DmaWrite(address, length uint32) {
	switch mdec.Command >> 29 {
	case MDEC_CMD_DECODE:
		mdec.Cursor = address
		mdec.Remaining = int32(length * 4)
		mdec.Block = 0
		mdec.Words = 0
		mdec.Drain = 0
		mdec.State = MDEC_STATE_DRAINING
	case MDEC_CMD_QUANT:
		for z := uint32(0); z < 64; z++ {
			mdec.QuantY[z] = int32(mdec.ram.Load8(address + z))
		}
		if mdec.Command&1 != 0 {
			for z := uint32(0); z < 64; z++ {
				mdec.QuantUV[z] = int32(mdec.ram.Load8(address + 64 + z))
			}
		}
		mdec.Command = 0
	case MDEC_CMD_COSINE:
		var table [64]int32
		for i := uint32(0); i < 64; i++ {
			table[i] = int32(int16(mdec.ram.Load16(address + i*2)))
		}
		mdec.SetCosineTable(table)
		mdec.Command = 0
	default:
		logger.Logf(logger.Allow, "mdec", "%d words of input without a command", length)
	}
}

// DMA1: stores up to `length` words of decoded pixels into RAM
func (mdec *MDEC) DmaRead(address, length uint32) {
	for n := uint32(0); n < length; n++ {
		word, ok := mdec.NextWord()
		if !ok {
			return
		}
		mdec.ram.Store32(address+n*4, word)
	}
}

// Returns the next word of decoded pixels, decoding a macroblock when the
// current tile is exhausted. `ok` is false once there's nothing left
func (mdec *MDEC) NextWord() (word uint32, ok bool) {
	if mdec.State == MDEC_STATE_IDLE {
		return 0, false
	}

	if mdec.Drain >= mdec.Words {
		if mdec.Remaining <= 0 {
			mdec.State = MDEC_STATE_IDLE
			return 0, false
		}

		if err := mdec.decodeMacroblock(); err != nil {
			if errors.Is(err, ErrMdecOutOfData) {
				logger.Logf(logger.Allow, "mdec", "%v at 0x%06x (block %d)", err, mdec.Cursor, mdec.Block)
			}
			mdec.abort()
			return 0, false
		}
	}

	word = mdec.Tile[mdec.Drain]
	mdec.Drain++
	if mdec.Drain >= mdec.Words && mdec.Remaining <= 0 {
		mdec.State = MDEC_STATE_IDLE
	}
	return word, true
}

func (mdec *MDEC) abort() {
	mdec.Remaining = 0
	mdec.Words = 0
	mdec.Drain = 0
	mdec.State = MDEC_STATE_IDLE
}

func (mdec *MDEC) nextCode() (uint16, error) {
	if mdec.Remaining < 2 {
		return 0, ErrMdecOutOfData
	}
	code := mdec.ram.Load16(mdec.Cursor)
	mdec.Cursor += 2
	mdec.Remaining -= 2
	return code, nil
}

// Unpacks one block. `end` is true if the block starts with the end of
// block code
func (mdec *MDEC) unpackBlock(blk int) (end bool, err error) {
	q := &mdec.QuantY
	if blk < 2 {
		q = &mdec.QuantUV
	}
	coef := &mdec.Blocks[blk]
	*coef = [64]int32{}

	code, err := mdec.nextCode()
	if err != nil {
		return false, err
	}
	if code == MDEC_END_OF_BLOCK {
		return true, nil
	}

	qscale := int32(code >> 10)
	coef[0] = signExtend(uint32(code), 10) * q[0]

	z := 0
	for {
		code, err = mdec.nextCode()
		if err != nil {
			return false, err
		}
		if code == MDEC_END_OF_BLOCK {
			break
		}

		z += int(code>>10) + 1
		if z > 63 {
			break
		}
		coef[ZigZag[z]] = signExtend(uint32(code), 10) * q[z] * qscale / 8
	}
	return false, nil
}

func (mdec *MDEC) decodeMacroblock() error {
	mdec.State = MDEC_STATE_UNPACKING

	for blk := 0; blk < 6; blk++ {
		mdec.Block = blk
		end, err := mdec.unpackBlock(blk)
		if err != nil {
			return err
		}
		if !end {
			continue
		}

		if blk == 0 {
			// padding between macroblocks
			if mdec.Remaining <= 0 {
				return errMdecEndOfStream
			}
			blk--
			continue
		}
		for ; blk < 6; blk++ {
			mdec.Blocks[blk] = [64]int32{}
		}
	}

	mdec.State = MDEC_STATE_COLOR_CONVERTING
	for blk := range mdec.Blocks {
		mdec.idct(&mdec.Blocks[blk])
	}
	mdec.colorConvert()

	mdec.State = MDEC_STATE_DRAINING
	mdec.Block = 0
	mdec.Drain = 0
	return nil
}

// In place 8x8 inverse DCT. A block with only a DC coefficient becomes a
// flat block of DC/8
func (mdec *MDEC) idct(block *[64]int32) {
	var out [64]int32
	for p := 0; p < 64; p++ {
		basis := mdec.Basis[p*64 : p*64+64]
		var sum int64
		for i, c := range block {
			if c != 0 {
				sum += int64(c) * int64(basis[i])
			}
		}
		out[p] = int32((sum + (1 << 22)) >> 23)
	}
	*block = out
}

// Converts the six blocks into a 16x16 tile of pixels. Chroma is sampled
// at half resolution
func (mdec *MDEC) colorConvert() {
	var stp uint16
	if mdec.Stp {
		stp = MDEC_STP
	}

	var rgb [16 * 16 * 3]byte
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			luma := mdec.Blocks[2+(y/8)*2+x/8][(y%8)*8+x%8]
			cr := mdec.Blocks[0][(y/2)*8+x/2]
			cb := mdec.Blocks[1][(y/2)*8+x/2]

			r := luma + ((1435 * cr) >> 10)
			g := luma + ((-731 * cr) >> 10) + ((-351 * cb) >> 10)
			b := luma + ((1814 * cb) >> 10)

			i := (y*16 + x) * 3
			rgb[i+0] = byte(clampInt32(r+128, 0, 255))
			rgb[i+1] = byte(clampInt32(g+128, 0, 255))
			rgb[i+2] = byte(clampInt32(b+128, 0, 255))
		}
	}

	switch mdec.Depth {
	case MDEC_DEPTH_24BIT:
		for w := 0; w < 192; w++ {
			mdec.Tile[w] = uint32(rgb[w*4]) | uint32(rgb[w*4+1])<<8 |
				uint32(rgb[w*4+2])<<16 | uint32(rgb[w*4+3])<<24
		}
		mdec.Words = 192
	default:
		for w := 0; w < 128; w++ {
			lo := pack15(rgb[w*6:w*6+3], stp)
			hi := pack15(rgb[w*6+3:w*6+6], stp)
			mdec.Tile[w] = uint32(lo) | uint32(hi)<<16
		}
		mdec.Words = 128
	}
}

func pack15(rgb []byte, stp uint16) uint16 {
	return uint16(rgb[0]>>3) | uint16(rgb[1]>>3)<<5 | uint16(rgb[2]>>3)<<10 | stp
}

func (mdec *MDEC) Load(offset uint32) uint32 {
	switch offset {
	case MDEC_REG_DATA:
		word, _ := mdec.NextWord()
		return word
	case MDEC_REG_CONTROL:
		return mdec.Status()
	}
	logUnhandled("mdec", "read", offset)
	return 0
}

func (mdec *MDEC) Store(offset, val, lanes uint32) {
	if lanes != 0xffffffff {
		logger.Logf(logger.Allow, "mdec", "partial write of register %d (lanes 0x%08x)", offset, lanes)
	}

	switch offset {
	case MDEC_REG_DATA:
		mdec.SetCommand(val)
	case MDEC_REG_CONTROL:
		mdec.SetControl(val)
	default:
		logUnhandled("mdec", "write", offset)
	}
}

type MDECSnapshot struct {
	Command   uint32
	Control   uint32
	State     MdecState
	Depth     MdecDepth
	Stp       bool
	Cursor    uint32
	Remaining int32
	Block     int
	QuantY    [64]int32
	QuantUV   [64]int32
	Cosine    [64]int32
	Tile      [192]uint32
	Words     int
	Drain     int
}

func (mdec *MDEC) Snapshot() MDECSnapshot {
	return MDECSnapshot{
		Command:   mdec.Command,
		Control:   mdec.Control,
		State:     mdec.State,
		Depth:     mdec.Depth,
		Stp:       mdec.Stp,
		Cursor:    mdec.Cursor,
		Remaining: mdec.Remaining,
		Block:     mdec.Block,
		QuantY:    mdec.QuantY,
		QuantUV:   mdec.QuantUV,
		Cosine:    mdec.Cosine,
		Tile:      mdec.Tile,
		Words:     mdec.Words,
		Drain:     mdec.Drain,
	}
}

// Restores the decoder, the IDCT basis is rebuilt from the cosine table
func (mdec *MDEC) Restore(s MDECSnapshot) {
	mdec.Command = s.Command
	mdec.Control = s.Control
	mdec.State = s.State
	mdec.Depth = s.Depth
	mdec.Stp = s.Stp
	mdec.Cursor = s.Cursor
	mdec.Remaining = s.Remaining
	mdec.Block = s.Block
	mdec.QuantY = s.QuantY
	mdec.QuantUV = s.QuantUV
	mdec.SetCosineTable(s.Cosine)
	mdec.Tile = s.Tile
	mdec.Words = s.Words
	mdec.Drain = s.Drain
}
