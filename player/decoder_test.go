package player

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/zeozeozeo/psxperiph/emulator"
)

func near(a, b uint8, tolerance int) bool {
	d := int(a) - int(b)
	return d >= -tolerance && d <= tolerance
}

func checkBars(t *testing.T, img *image.RGBA, phase, tolerance int) {
	b := img.Bounds()
	columns := b.Dx() / 16
	for mx := 0; mx < columns; mx++ {
		want := colorBars[((mx+phase)*len(colorBars)/columns)%len(colorBars)]
		for _, p := range []image.Point{{mx * 16, 0}, {mx*16 + 15, b.Dy() - 1}, {mx*16 + 7, b.Dy() / 2}} {
			got := img.RGBAAt(p.X, p.Y)
			if !near(got.R, want.R, tolerance) || !near(got.G, want.G, tolerance) || !near(got.B, want.B, tolerance) {
				t.Errorf("column %d at %v: expected %v, got %v", mx, p, want, got)
			}
		}
	}
}

func TestDecodeFrame15(t *testing.T) {
	d, err := NewDecoder(emulator.Config{}, emulator.MDEC_DEPTH_15BIT)
	if err != nil {
		t.Fatal(err)
	}

	stream, err := Synthesize(64, 32, 0)
	if err != nil {
		t.Fatal(err)
	}
	img, err := d.DecodeFrame(stream)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	checkBars(t, img, 0, 12)

	// the interrupt was acknowledged at every step
	if d.Inter.IrqState.Status != 0 {
		t.Errorf("expected 0x%x, got 0x%x", 0, d.Inter.IrqState.Status)
	}

	// a second frame goes through the same machine
	stream, err = Synthesize(64, 32, 3)
	if err != nil {
		t.Fatal(err)
	}
	img, err = d.DecodeFrame(stream)
	if err != nil {
		t.Fatal(err)
	}
	checkBars(t, img, 3, 12)
}

func TestDecodeFrame24(t *testing.T) {
	d, err := NewDecoder(emulator.Config{}, emulator.MDEC_DEPTH_24BIT)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := Synthesize(32, 16, 0)
	if err != nil {
		t.Fatal(err)
	}
	img, err := d.DecodeFrame(stream)
	if err != nil {
		t.Fatal(err)
	}
	checkBars(t, img, 0, 4)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("expected white, got %v", got)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	if _, err := NewDecoder(emulator.Config{}, emulator.MDEC_DEPTH_8BIT); err == nil {
		t.Error("monochrome output accepted")
	}

	d, err := NewDecoder(emulator.Config{}, emulator.MDEC_DEPTH_15BIT)
	if err != nil {
		t.Fatal(err)
	}
	huge := &Stream{Width: 16, Height: 16, Data: make([]byte, STREAM_LIMIT+2)}
	if _, err := d.DecodeFrame(huge); !errors.Is(err, ErrStreamTooLarge) {
		t.Errorf("expected ErrStreamTooLarge, got %v", err)
	}
	if _, err := d.DecodeFrame(&Stream{Width: 8, Height: 16}); !errors.Is(err, ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}
}

func TestPollPad(t *testing.T) {
	d, err := NewDecoder(emulator.Config{}, emulator.MDEC_DEPTH_15BIT)
	if err != nil {
		t.Fatal(err)
	}

	buttons, err := d.PollPad()
	if err != nil {
		t.Fatal(err)
	}
	if buttons != 0xffff {
		t.Errorf("expected 0x%x, got 0x%x", 0xffff, buttons)
	}

	d.Inter.Pad.SetButtonState(emulator.BUTTON_START, emulator.BUTTON_STATE_PRESSED)
	d.Inter.Pad.SetButtonState(emulator.BUTTON_SQUARE, emulator.BUTTON_STATE_PRESSED)
	buttons, err = d.PollPad()
	if err != nil {
		t.Fatal(err)
	}
	if want := uint16(0xffff &^ (1<<emulator.BUTTON_START | 1<<emulator.BUTTON_SQUARE)); buttons != want {
		t.Errorf("expected 0x%x, got 0x%x", want, buttons)
	}

	// the port is released between polls
	if d.Inter.Pad.Bus.IsBusy() {
		t.Error("pad still selected")
	}
	if d.load32(IRQ_MASK) != 1<<emulator.INTERRUPT_DMA {
		t.Errorf("interrupt mask not restored: 0x%x", d.load32(IRQ_MASK))
	}
}

func TestPollPadMissing(t *testing.T) {
	d, err := NewDecoder(emulator.Config{Sio0Handler: func(lines uint8) {}}, emulator.MDEC_DEPTH_15BIT)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.PollPad(); !errors.Is(err, ErrNoPad) {
		t.Errorf("expected ErrNoPad, got %v", err)
	}
}
