package emulator

import (
	"testing"

	"github.com/zeozeozeo/psxperiph/logger"
)

// Writes halfword codes to RAM and returns their length in words
func writeCodes(ram *RAM, address uint32, codes []uint16) uint32 {
	for i, code := range codes {
		ram.Store16(address+uint32(i)*2, code)
	}
	return uint32(len(codes)+1) / 2
}

// DC only macroblock: flat chroma, luma code `y` in the four blocks
func flatMacroblock(y int32) []uint16 {
	dc := func(v int32) uint16 { return 1<<10 | uint16(v)&0x3ff }
	return []uint16{
		dc(0), MDEC_END_OF_BLOCK,
		dc(0), MDEC_END_OF_BLOCK,
		dc(y), MDEC_END_OF_BLOCK,
		dc(y), MDEC_END_OF_BLOCK,
		dc(y), MDEC_END_OF_BLOCK,
		dc(y), MDEC_END_OF_BLOCK,
	}
}

func TestMdecIdctFlat(t *testing.T) {
	mdec := NewMDEC(NewRAM(0))

	for _, dc := range []int32{800, -800, 8, 0} {
		var block [64]int32
		block[0] = dc
		mdec.idct(&block)
		for i, v := range block {
			if v != dc/8 {
				t.Errorf("dc %d, sample %d: expected %d, got %d", dc, i, dc/8, v)
				break
			}
		}
	}
}

func TestMdecDecode15(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	ram := NewRAM(0)
	mdec := NewMDEC(ram)
	words := writeCodes(ram, 0x1000, flatMacroblock(400))

	mdec.Store(MDEC_REG_DATA, MDEC_CMD_DECODE<<29|uint32(MDEC_DEPTH_15BIT)<<27|1<<25|words, 0xffffffff)
	mdec.DmaWrite(0x1000, words)
	assert(mdec.Load(MDEC_REG_CONTROL)&(1<<29) != 0)
	assert(mdec.Status()&(1<<23) != 0)

	mdec.DmaRead(0x8000, 128)
	// luma 100, no chroma: 228 on every channel
	want := uint32(0xf39c) | uint32(0xf39c)<<16
	for w := uint32(0); w < 128; w++ {
		if got := ram.Load32(0x8000 + w*4); got != want {
			t.Errorf("word %d: expected 0x%x, got 0x%x", w, want, got)
			break
		}
	}
	assert(mdec.State == MDEC_STATE_IDLE)
	assert(mdec.Load(MDEC_REG_CONTROL)&(1<<31) != 0)

	// nothing more to read
	mdec.DmaRead(0x9000, 1)
	assert(ram.Load32(0x9000) == 0xcdcdcdcd)
}

func TestMdecDecode24(t *testing.T) {
	ram := NewRAM(0)
	mdec := NewMDEC(ram)
	codes := append(flatMacroblock(400), flatMacroblock(-400)...)
	words := writeCodes(ram, 0x1000, codes)

	mdec.SetCommand(MDEC_CMD_DECODE<<29 | uint32(MDEC_DEPTH_24BIT)<<27 | words)
	mdec.DmaWrite(0x1000, words)
	mdec.DmaRead(0x8000, 2*192)

	expected := []uint32{0xe4e4e4e4, 0x1c1c1c1c}
	for tile, want := range expected {
		for w := uint32(0); w < 192; w++ {
			addr := 0x8000 + (uint32(tile)*192+w)*4
			if got := ram.Load32(addr); got != want {
				t.Errorf("tile %d, word %d: expected 0x%x, got 0x%x", tile, w, want, got)
				break
			}
		}
	}
}

func TestMdecPadding(t *testing.T) {
	logger.Clear()
	ram := NewRAM(0)
	mdec := NewMDEC(ram)

	codes := []uint16{MDEC_END_OF_BLOCK, MDEC_END_OF_BLOCK}
	codes = append(codes, flatMacroblock(0)...)
	codes = append(codes, MDEC_END_OF_BLOCK, MDEC_END_OF_BLOCK, MDEC_END_OF_BLOCK)
	words := writeCodes(ram, 0x1000, codes)
	ram.Store16(0x1000+uint32(len(codes))*2, MDEC_END_OF_BLOCK)

	mdec.SetCommand(MDEC_CMD_DECODE<<29 | uint32(MDEC_DEPTH_15BIT)<<27 | words)
	mdec.DmaWrite(0x1000, words)

	count := 0
	for {
		if _, ok := mdec.NextWord(); !ok {
			break
		}
		count++
	}
	if count != 128 {
		t.Errorf("expected %d, got %d", 128, count)
	}
	if logger.Contains("mdec", "ran out of data") {
		t.Error("padding reported as missing data")
	}
}

func TestMdecEarlyEnd(t *testing.T) {
	ram := NewRAM(0)
	mdec := NewMDEC(ram)

	// only Cr, Cb and Y0, the end code closes the macroblock
	codes := flatMacroblock(400)[:6]
	codes = append(codes, MDEC_END_OF_BLOCK, MDEC_END_OF_BLOCK)
	words := writeCodes(ram, 0x1000, codes)

	mdec.SetCommand(MDEC_CMD_DECODE<<29 | uint32(MDEC_DEPTH_24BIT)<<27 | words)
	mdec.DmaWrite(0x1000, words)
	mdec.DmaRead(0x8000, 192)

	// top left pixel comes from Y0, bottom right from the empty Y3
	if got := ram.Load8(0x8000); got != 228 {
		t.Errorf("expected %d, got %d", 228, got)
	}
	if got := ram.Load8(0x8000 + 255*3); got != 128 {
		t.Errorf("expected %d, got %d", 128, got)
	}
}

func TestMdecOutOfData(t *testing.T) {
	logger.Clear()
	ram := NewRAM(0)
	mdec := NewMDEC(ram)

	codes := flatMacroblock(400)[:6]
	words := writeCodes(ram, 0x1000, codes)

	mdec.SetCommand(MDEC_CMD_DECODE<<29 | uint32(MDEC_DEPTH_15BIT)<<27 | words)
	mdec.DmaWrite(0x1000, words)
	mdec.DmaRead(0x8000, 128)

	if got := ram.Load32(0x8000); got != 0xcdcdcdcd {
		t.Errorf("expected 0x%x, got 0x%x", 0xcdcdcdcd, got)
	}
	if mdec.State != MDEC_STATE_IDLE {
		t.Error("decoder did not return to idle")
	}
	if !logger.Contains("mdec", "ran out of data") {
		t.Error("expected a diagnostic")
	}
}

func TestMdecTables(t *testing.T) {
	ram := NewRAM(0)
	mdec := NewMDEC(ram)

	for i := uint32(0); i < 128; i++ {
		ram.Store8(0x2000+i, uint8(i+1))
	}
	mdec.Store(MDEC_REG_DATA, MDEC_CMD_QUANT<<29|1, 0xffffffff)
	mdec.DmaWrite(0x2000, 32)
	if mdec.QuantY[0] != 1 || mdec.QuantY[63] != 64 || mdec.QuantUV[0] != 65 || mdec.QuantUV[63] != 128 {
		t.Error("quantization tables not loaded")
	}

	// luminance only
	mdec.SetCommand(MDEC_CMD_QUANT << 29)
	ram.Store8(0x2000, 9)
	mdec.DmaWrite(0x2000, 16)
	if mdec.QuantY[0] != 9 || mdec.QuantUV[0] != 65 {
		t.Error("chrominance table overwritten")
	}

	defaultBasis := mdec.Basis
	table := DefaultCosineTable()
	for i, c := range table {
		ram.Store16(0x3000+uint32(i)*2, uint16(int16(c)))
	}
	mdec.Basis = [4096]int32{}
	mdec.SetCommand(MDEC_CMD_COSINE << 29)
	mdec.DmaWrite(0x3000, 32)
	if mdec.Basis != defaultBasis {
		t.Error("cosine upload produced a different basis")
	}
}

func TestMdecCommands(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	logger.Clear()
	mdec := NewMDEC(NewRAM(0))

	mdec.SetCommand(7 << 29)
	assert(logger.Contains("mdec", "unknown command"))
	assert(mdec.Command == 0)

	mdec.SetCommand(MDEC_CMD_DECODE<<29 | uint32(MDEC_DEPTH_8BIT)<<27)
	assert(logger.Contains("mdec", "unsupported monochrome output"))
	assert(mdec.Depth == MDEC_DEPTH_15BIT)

	mdec.SetCommand(MDEC_CMD_DECODE<<29 | uint32(MDEC_DEPTH_24BIT)<<27 | 6)
	mdec.Store(MDEC_REG_CONTROL, 3<<29, 0xffffffff)
	status := mdec.Load(MDEC_REG_CONTROL)
	assert(status&(1<<28) != 0)
	assert((status>>25)&3 == uint32(MDEC_DEPTH_24BIT))

	mdec.Store(MDEC_REG_CONTROL, 1<<31, 0xffffffff)
	assert(mdec.Command == 0)
	assert(mdec.Control == 0)
	assert(mdec.Depth == MDEC_DEPTH_15BIT)
}
