package player

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/zeozeozeo/psxperiph/emulator"
	"golang.org/x/image/draw"
)

// Converts a frame read back from VRAM. `stride` is the length of a line in
// bytes
func FrameImage(data []byte, width, height, stride int, depth emulator.MdecDepth) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		line := data[y*stride:]
		for x := 0; x < width; x++ {
			if depth == emulator.MDEC_DEPTH_24BIT {
				p := line[x*3:]
				img.SetRGBA(x, y, color.RGBA{p[0], p[1], p[2], 255})
				continue
			}
			val := uint16(line[x*2]) | uint16(line[x*2+1])<<8
			img.SetRGBA(x, y, Color15(val))
		}
	}
	return img
}

// Expands a 15 bit VRAM pixel to 8 bits per component
func Color15(val uint16) color.RGBA {
	r := uint8(val&0x1f) << 3
	g := uint8((val>>5)&0x1f) << 3
	b := uint8((val>>10)&0x1f) << 3
	return color.RGBA{r | r>>5, g | g>>5, b | b>>5, 255}
}

// Scales `img` by an integer factor. Nearest neighbour keeps the
// macroblock edges sharp, bilinear smooths them
func Scale(img image.Image, factor int, smooth bool) image.Image {
	if factor <= 1 {
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	var scaler draw.Scaler = draw.NearestNeighbor
	if smooth {
		scaler = draw.BiLinear
	}
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("player: png: %w", err)
	}
	return nil
}

// Reduces `img` to a median cut palette of at most `colors` entries
func Quantize(img image.Image, colors int, dither bool) *image.Paletted {
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make([]color.Color, 0, colors), img)

	paletted := image.NewPaletted(img.Bounds(), p)
	var d draw.Drawer = draw.Src
	if dither {
		d = draw.FloydSteinberg
	}
	d.Draw(paletted, paletted.Bounds(), img, img.Bounds().Min)
	return paletted
}

// Writes the frames as an animated GIF, `delay` in 100ths of a second
func WriteGIF(w io.Writer, frames []image.Image, colors, delay int, dither bool) error {
	anim := &gif.GIF{}
	for _, frame := range frames {
		anim.Image = append(anim.Image, Quantize(frame, colors, dither))
		anim.Delay = append(anim.Delay, delay)
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("player: gif: %w", err)
	}
	return nil
}
