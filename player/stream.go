package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
)

var ErrFrameSize = errors.New("player: unsupported frame size")

// One frame worth of MDEC bitstream: little endian 16 bit codes, the
// macroblocks in column major order
type Stream struct {
	Width  int
	Height int
	Data   []byte
}

// Checks that a `width` x `height` frame can be decoded and uploaded to
// VRAM at `depth`
func CheckFrameSize(width, height int, halfwordsPerPixel float64) error {
	if width <= 0 || height <= 0 || width%16 != 0 || height%16 != 0 {
		return fmt.Errorf("%w: %dx%d is not made of 16x16 macroblocks", ErrFrameSize, width, height)
	}
	if float64(width)*halfwordsPerPixel > VRAM_WIDTH || height > VRAM_HEIGHT {
		return fmt.Errorf("%w: %dx%d doesn't fit in VRAM", ErrFrameSize, width, height)
	}
	return nil
}

// Reads a raw bitstream for a `width` x `height` frame
func ReadStream(r io.Reader, width, height int) (*Stream, error) {
	if err := CheckFrameSize(width, height, 1); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("player: reading stream: %w", err)
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	return &Stream{Width: width, Height: height, Data: data}, nil
}

// SMPTE-like bar colors
var colorBars = []color.RGBA{
	{255, 255, 255, 255}, // white
	{255, 255, 0, 255},   // yellow
	{0, 255, 255, 255},   // cyan
	{0, 255, 0, 255},     // green
	{255, 0, 255, 255},   // magenta
	{255, 0, 0, 255},     // red
	{0, 0, 255, 255},     // blue
	{0, 0, 0, 255},       // black
}

// Returns the DC codes (luma, blue and red chroma) reproducing `c` with the
// decoder's fixed point conversion. The default quantization table scales
// DC by 2 and the IDCT divides it by 8
func barCodes(c color.RGBA) (y, cb, cr int32) {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	luma := 0.299*r + 0.587*g + 0.114*b

	dc := func(v float64) int32 {
		return int32(math.Max(-512, math.Min(511, math.Round(v*4))))
	}
	return dc(luma - 128), dc((b - luma) * 1024 / 1814), dc((r - luma) * 1024 / 1435)
}

// Produces a frame of vertical color bars made of DC-only macroblocks.
// `phase` shifts the bars by that many macroblock columns
func Synthesize(width, height, phase int) (*Stream, error) {
	if err := CheckFrameSize(width, height, 1); err != nil {
		return nil, err
	}

	columns, rows := width/16, height/16
	codes := make([]uint16, 0, columns*rows*6*2)
	for mx := 0; mx < columns; mx++ {
		bar := colorBars[((mx+phase)*len(colorBars)/columns)%len(colorBars)]
		y, cb, cr := barCodes(bar)

		for my := 0; my < rows; my++ {
			for _, dc := range []int32{cr, cb, y, y, y, y} {
				// qscale 1, DC, end of block
				codes = append(codes, 1<<10|uint16(dc)&0x3ff, 0xfe00)
			}
		}
	}

	data := make([]byte, len(codes)*2)
	for i, code := range codes {
		binary.LittleEndian.PutUint16(data[i*2:], code)
	}
	return &Stream{Width: width, Height: height, Data: data}, nil
}
