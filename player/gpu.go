// Package player turns MDEC streams into pictures by driving the
// peripheral complex through its registers, the way software running on
// the console does.
package player

import (
	"github.com/zeozeozeo/psxperiph/emulator"
	"github.com/zeozeozeo/psxperiph/logger"
)

// Represents the depth of the pixel values in a texture page
type TextureDepth uint8

const (
	TEXTURE_DEPTH_4BIT  TextureDepth = 0 // 4 bits per pixel
	TEXTURE_DEPTH_8BIT  TextureDepth = 1 // 8 bits per pixel
	TEXTURE_DEPTH_15BIT TextureDepth = 2 // 15 bits per pixel
)

// What the GP0 port does with the next word
type GP0Mode int

const (
	GP0_MODE_COMMAND    GP0Mode = iota // Words are commands and their parameters
	GP0_MODE_IMAGE_LOAD GP0Mode = iota // Words are pixels going to VRAM
)

// Just enough of a GPU to be the peer of DMA channel 2: GP0 commands come
// in by DMA, images move between RAM and VRAM. Nothing is rasterized
type GPU struct {
	PageBaseX        uint8        // Texture page base X coordinate (4 bits, 64 byte increment)
	PageBaseY        uint8        // Texture page base Y coordinate (1 bit, 256 line increment)
	SemiTransparency uint8        // Blending mode of semi-transparent primitives, stored only
	TextureDepth     TextureDepth // Texture page color depth
	Dithering        bool         // Enable dithering from 24 to 15 bits RGB
	DrawToDisplay    bool         // Allow drawing to the display area
	// Force "mask" bit of the pixel to 1 when writing to VRAM (otherwise, don't
	// modify it)
	ForceSetMaskBit      bool
	PreserveMaskedPixels bool // Don't draw to pixels which have the "mask" bit set

	GP0Command          CommandBuffer // Buffer containing the current GP0 command
	GP0CommandRemaining uint32        // Remaining words for the current GP0 command
	GP0CommandMethod    func()        // Method implementing the current GP0 command
	GP0Mode             GP0Mode       // Current GP0 mode

	VRAM  []uint16    // 1024x512 halfwords
	Load  ImageBuffer // Current CPU to VRAM transfer
	Store ImageBuffer // Current VRAM to CPU transfer

	Ram *emulator.RAM // Memory the DMA transfers point into
}

func NewGPU() *GPU {
	return &GPU{
		TextureDepth: TEXTURE_DEPTH_4BIT,
		VRAM:         make([]uint16, VRAM_SIZE_PIXELS),
	}
}

// DMA2, RAM to GPU: every word is written to GP0
func (gpu *GPU) DmaWrite(address, length uint32) {
	for i := uint32(0); i < length; i++ {
		gpu.GP0(gpu.Ram.Load32(address + i*4))
	}
}

// DMA2, GPU to RAM: words come from the `read` register
func (gpu *GPU) DmaRead(address, length uint32) {
	for i := uint32(0); i < length; i++ {
		gpu.Ram.Store32(address+i*4, gpu.Read())
	}
}

// Handle writes to the GP0 command register
func (gpu *GPU) GP0(val uint32) {
	if gpu.GP0CommandRemaining == 0 {
		// start a new GP0 command
		opcode := (val >> 24) & 0xff

		var length uint32 = 1
		var method func()
		switch opcode {
		case 0x00:
			method = func() {} // NOP
		case 0x01:
			method = gpu.GP0ClearCache
		case 0xa0:
			length = 3
			method = gpu.GP0ImageLoad
		case 0xc0:
			length = 3
			method = gpu.GP0ImageStore
		case 0xe1:
			method = gpu.GP0DrawMode
		case 0xe6:
			method = gpu.GP0MaskBitSetting
		default:
			logger.Logf(logger.Allow, "gpu", "unhandled GP0 command 0x%08x", val)
			return
		}

		gpu.GP0CommandRemaining = length
		gpu.GP0CommandMethod = method
		gpu.GP0Command.Clear()
	}

	gpu.GP0CommandRemaining--

	switch gpu.GP0Mode {
	case GP0_MODE_COMMAND:
		gpu.GP0Command.PushWord(val)
		if gpu.GP0CommandRemaining == 0 {
			// we have all the parameters, we can run the command
			gpu.GP0CommandMethod()
		}
	case GP0_MODE_IMAGE_LOAD:
		var mask uint16
		if gpu.ForceSetMaskBit {
			mask = 0x8000
		}
		gpu.Load.PushWord(gpu.VRAM, val, mask)
		if gpu.GP0CommandRemaining == 0 {
			// load done, switch back to command mode
			gpu.GP0Mode = GP0_MODE_COMMAND
		}
	}
}

// GP0(0x01): Clear Cache
func (gpu *GPU) GP0ClearCache() {}

// Reads the position and size parameters of an image transfer command
func (gpu *GPU) imageParams(buf *ImageBuffer) {
	pos := gpu.GP0Command.Get(1)
	res := gpu.GP0Command.Get(2)

	x := uint16(pos & 0x3ff)
	y := uint16((pos >> 16) & 0x1ff)
	// a size of 0 means the maximum
	width := uint16(((res&0xffff)-1)&0x3ff) + 1
	height := uint16((((res>>16)&0xffff)-1)&0x1ff) + 1
	buf.Reset(x, y, width, height)
}

// GP0(0xA0): Load Image
func (gpu *GPU) GP0ImageLoad() {
	gpu.imageParams(&gpu.Load)

	// put the GP0 state machine in image load mode
	gpu.GP0CommandRemaining = gpu.Load.Words()
	if gpu.GP0CommandRemaining > 0 {
		gpu.GP0Mode = GP0_MODE_IMAGE_LOAD
	}
}

// GP0(0xC0): Store Image, the pixels are then read from the `read` register
func (gpu *GPU) GP0ImageStore() {
	gpu.imageParams(&gpu.Store)
}

// GP0(0xE1) command
func (gpu *GPU) GP0DrawMode() {
	val := gpu.GP0Command.Get(0)
	gpu.PageBaseX = uint8(val & 0xf)
	gpu.PageBaseY = uint8((val >> 4) & 1)
	gpu.SemiTransparency = uint8((val >> 5) & 3)

	switch (val >> 7) & 3 {
	case 0:
		gpu.TextureDepth = TEXTURE_DEPTH_4BIT
	case 1:
		gpu.TextureDepth = TEXTURE_DEPTH_8BIT
	case 2:
		gpu.TextureDepth = TEXTURE_DEPTH_15BIT
	default:
		logger.Logf(logger.Allow, "gpu", "unhandled texture depth %d", (val>>7)&3)
	}

	gpu.Dithering = ((val >> 9) & 1) != 0
	gpu.DrawToDisplay = ((val >> 10) & 1) != 0
}

// GP0(0xE6): Set Mask Bit Setting
func (gpu *GPU) GP0MaskBitSetting() {
	val := gpu.GP0Command.Get(0)
	gpu.ForceSetMaskBit = (val & 1) != 0
	gpu.PreserveMaskedPixels = (val & 2) != 0
}

// Return value of the `read` register
func (gpu *GPU) Read() uint32 {
	if gpu.Store.Done() {
		return 0
	}
	return gpu.Store.PopWord(gpu.VRAM)
}
