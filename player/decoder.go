package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/zeozeozeo/psxperiph/emulator"
)

// Register addresses, through KSEG1 like the console's own software uses
const (
	SIO0_DATA    uint32 = 0xbf801040
	SIO0_STATUS  uint32 = 0xbf801044
	SIO0_MODE    uint32 = 0xbf801048
	SIO0_CONTROL uint32 = 0xbf80104a
	SIO0_BAUD    uint32 = 0xbf80104e
	IRQ_STATUS   uint32 = 0xbf801070
	IRQ_MASK     uint32 = 0xbf801074
	DMA_BASE     uint32 = 0xbf801080 // + 0x10 * channel
	DMA_DPCR     uint32 = 0xbf8010f0
	DMA_DICR     uint32 = 0xbf8010f4
	MDEC_COMMAND uint32 = 0xbf801820
	MDEC_CONTROL uint32 = 0xbf801824
)

// RAM layout of the player
const (
	TABLE_ADDR  uint32 = 0x001000 // Quantization and cosine tables
	PACKET_ADDR uint32 = 0x001800 // GPU command chain
	COLUMN_ADDR uint32 = 0x002000 // One column of macroblocks, behind a GP0(0xA0) header
	STREAM_ADDR uint32 = 0x010000 // Bitstream
	FRAME_ADDR  uint32 = 0x100000 // Frame read back from VRAM

	STREAM_LIMIT = FRAME_ADDR - STREAM_ADDR

	// Cycles to wait for a transfer before giving up
	TIMEOUT uint64 = 1 << 24
)

// Channel control values
const (
	CHCR_FROM_RAM     uint32 = 1 << 0
	CHCR_REQUEST      uint32 = 1 << 9
	CHCR_LINKED_LIST  uint32 = 2 << 9
	CHCR_START        uint32 = 1 << 24
	DICR_MASTER       uint32 = 1 << 23
	DICR_ENABLE_SHIFT        = 16
)

var (
	ErrTimeout        = errors.New("player: timed out")
	ErrStreamTooLarge = errors.New("player: stream too large")
	ErrNoPad          = errors.New("player: no pad on the controller port")
)

// Decodes frames by programming the MDEC, the DMA and the GPU through
// register accesses only
type Decoder struct {
	Inter *emulator.Interconnect
	Gpu   *GPU
	Depth emulator.MdecDepth
	Stp   bool // Set the mask bit of 15 bit pixels
}

// Boots the peripheral complex with a GPU on DMA2 and a digital pad on the
// controller port
func NewDecoder(config emulator.Config, depth emulator.MdecDepth) (*Decoder, error) {
	if depth != emulator.MDEC_DEPTH_15BIT && depth != emulator.MDEC_DEPTH_24BIT {
		return nil, fmt.Errorf("player: unsupported depth %d", depth)
	}

	gpu := NewGPU()
	config.Gpu = gpu
	if config.Sio0Handler == nil {
		config.Pad = emulator.GAMEPAD_TYPE_DIGITAL
	}
	inter, err := emulator.NewInterconnect(config)
	if err != nil {
		return nil, err
	}
	gpu.Ram = inter.Ram

	d := &Decoder{Inter: inter, Gpu: gpu, Depth: depth}

	// enable MDEC in, MDEC out and GPU in the priority register, completion
	// interrupts for MDEC out and GPU
	d.store32(DMA_DPCR, d.load32(DMA_DPCR)|0x888)
	d.store32(DMA_DICR, DICR_MASTER|(1<<(DICR_ENABLE_SHIFT+1))|(1<<(DICR_ENABLE_SHIFT+2)))
	d.store32(IRQ_MASK, 1<<emulator.INTERRUPT_DMA)
	d.store32(MDEC_CONTROL, 1<<31)
	d.store32(MDEC_CONTROL, 3<<29)

	cosine := emulator.DefaultCosineTable()
	quant := emulator.DefaultQuantTable()
	var q [64]uint8
	var c [64]int16
	for i := range q {
		q[i] = uint8(quant[i])
		c[i] = int16(cosine[i])
	}
	if err := d.UploadTables(q, q, c); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) load32(addr uint32) uint32 {
	return d.Inter.Load(addr, emulator.ACCESS_WORD)
}

func (d *Decoder) store32(addr, val uint32) {
	d.Inter.Store(addr, emulator.ACCESS_WORD, val)
}

func (d *Decoder) startDma(port emulator.Port, base, bcr, chcr uint32) {
	reg := DMA_BASE + 0x10*uint32(port)
	d.store32(reg, base)
	d.store32(reg+4, bcr)
	d.store32(reg+8, chcr)
}

// Waits until the channel's start bit drops
func (d *Decoder) waitChannel(port emulator.Port) error {
	chcr := DMA_BASE + 0x10*uint32(port) + 8
	done := d.Inter.RunUntil(func() bool {
		return d.load32(chcr)&CHCR_START == 0
	}, TIMEOUT)
	if !done {
		return fmt.Errorf("%w: DMA channel %d", ErrTimeout, port)
	}
	return nil
}

// Waits for the DMA interrupt, then acknowledges it on the DMA and on the
// interrupt controller
func (d *Decoder) waitDmaIrq(what string) error {
	if !d.Inter.RunUntilInterrupt(emulator.INTERRUPT_DMA, TIMEOUT) {
		return fmt.Errorf("%w: %s", ErrTimeout, what)
	}
	// writing 0 to the flags acknowledges them
	d.store32(DMA_DICR, d.load32(DMA_DICR)&0x00ffffff)
	d.store32(IRQ_STATUS, ^uint32(1<<emulator.INTERRUPT_DMA))
	return nil
}

// Uploads the quantization tables (zig-zag order) and the DCT matrix
func (d *Decoder) UploadTables(quantY, quantUV [64]uint8, cosine [64]int16) error {
	for i := uint32(0); i < 64; i++ {
		d.Inter.Store(TABLE_ADDR+i, emulator.ACCESS_BYTE, uint32(quantY[i]))
		d.Inter.Store(TABLE_ADDR+64+i, emulator.ACCESS_BYTE, uint32(quantUV[i]))
	}
	d.store32(MDEC_COMMAND, emulator.MDEC_CMD_QUANT<<29|1)
	d.startDma(emulator.PORT_MDEC_IN, TABLE_ADDR, 1<<16|32, CHCR_START|CHCR_FROM_RAM|CHCR_REQUEST)
	if err := d.waitChannel(emulator.PORT_MDEC_IN); err != nil {
		return err
	}

	for i := uint32(0); i < 64; i++ {
		d.Inter.Store(TABLE_ADDR+i*2, emulator.ACCESS_HALFWORD, uint32(uint16(cosine[i])))
	}
	d.store32(MDEC_COMMAND, emulator.MDEC_CMD_COSINE<<29)
	d.startDma(emulator.PORT_MDEC_IN, TABLE_ADDR, 1<<16|32, CHCR_START|CHCR_FROM_RAM|CHCR_REQUEST)
	return d.waitChannel(emulator.PORT_MDEC_IN)
}

// Width of a line of pixels in VRAM halfwords
func (d *Decoder) halfwords(pixels int) int {
	if d.Depth == emulator.MDEC_DEPTH_24BIT {
		return pixels * 3 / 2
	}
	return pixels
}

// Decodes a frame into VRAM one column of macroblocks at a time, then reads
// it back
func (d *Decoder) DecodeFrame(stream *Stream) (*image.RGBA, error) {
	width, height := stream.Width, stream.Height
	if err := CheckFrameSize(width, height, float64(d.halfwords(2))/2); err != nil {
		return nil, err
	}
	if err := d.waitChannel(emulator.PORT_MDEC_IN); err != nil {
		return nil, err
	}

	// the stream goes in blocks of 32 words, padded with end of block codes
	words := (len(stream.Data) + 3) / 4
	words = (words + 31) &^ 31
	if uint32(words*4) > STREAM_LIMIT {
		return nil, fmt.Errorf("%w: %d bytes", ErrStreamTooLarge, len(stream.Data))
	}
	d.Inter.Ram.Write(STREAM_ADDR, stream.Data)
	for i := uint32(len(stream.Data)) &^ 1; i < uint32(words*4); i += 2 {
		d.Inter.Ram.Store16(STREAM_ADDR+i, emulator.MDEC_END_OF_BLOCK)
	}

	cmd := emulator.MDEC_CMD_DECODE<<29 | uint32(d.Depth)<<27 | uint32(words&0xffff)
	if d.Stp {
		cmd |= 1 << 25
	}
	d.store32(MDEC_COMMAND, cmd)

	tileWords := 128
	if d.Depth == emulator.MDEC_DEPTH_24BIT {
		tileWords = 192
	}
	columnWords := tileWords * height / 16
	columnWidth := d.halfwords(16)

	for col := 0; col < width/16; col++ {
		d.startDma(emulator.PORT_MDEC_OUT, COLUMN_ADDR+12, uint32(columnWords/32)<<16|32, CHCR_START|CHCR_REQUEST)
		if col == 0 {
			d.startDma(emulator.PORT_MDEC_IN, STREAM_ADDR, uint32(words/32)<<16|32, CHCR_START|CHCR_FROM_RAM|CHCR_REQUEST)
		}
		if err := d.waitDmaIrq("MDEC output"); err != nil {
			return nil, err
		}

		// GP0(0xA0) header in front of the pixels
		d.store32(COLUMN_ADDR, 0xa0000000)
		d.store32(COLUMN_ADDR+4, uint32(col*columnWidth))
		d.store32(COLUMN_ADDR+8, uint32(height)<<16|uint32(columnWidth))
		d.startDma(emulator.PORT_GPU, COLUMN_ADDR, uint32(3+columnWords), CHCR_START|CHCR_FROM_RAM)
		if err := d.waitDmaIrq("GPU upload"); err != nil {
			return nil, err
		}
	}

	return d.readBack(width, height)
}

// Reads the frame back from VRAM with GP0(0xC0), the command is sent as a
// DMA linked list
func (d *Decoder) readBack(width, height int) (*image.RGBA, error) {
	lineWidth := d.halfwords(width)

	var drawMode uint32 = 0xe1000000 | 2<<7
	packets := []uint32{
		// draw mode, then the store image command
		1<<24 | (PACKET_ADDR + 8), drawMode,
		3<<24 | 0xffffff, 0xc0000000, 0, uint32(height)<<16 | uint32(lineWidth),
	}
	for i, word := range packets {
		d.store32(PACKET_ADDR+uint32(i*4), word)
	}
	d.startDma(emulator.PORT_GPU, PACKET_ADDR, 0, CHCR_START|CHCR_FROM_RAM|CHCR_LINKED_LIST)
	if err := d.waitDmaIrq("GPU command chain"); err != nil {
		return nil, err
	}

	// one block per line
	lineWords := (lineWidth + 1) / 2
	d.startDma(emulator.PORT_GPU, FRAME_ADDR, uint32(height)<<16|uint32(lineWords), CHCR_START|CHCR_REQUEST)
	if err := d.waitDmaIrq("GPU readback"); err != nil {
		return nil, err
	}

	size := lineWords * 4 * height
	data := make([]byte, size)
	for i := 0; i < size; i += 4 {
		binary.LittleEndian.PutUint32(data[i:], d.load32(FRAME_ADDR+uint32(i)))
	}
	return FrameImage(data, width, height, lineWords*4, d.Depth), nil
}
