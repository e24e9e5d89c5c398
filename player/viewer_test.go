package player

import (
	"errors"
	"image"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/zeozeozeo/psxperiph/emulator"
)

func TestNewViewerErrors(t *testing.T) {
	d, err := NewDecoder(emulator.Config{}, emulator.MDEC_DEPTH_15BIT)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewViewer(d, nil, 2); err == nil {
		t.Error("viewer without frames")
	}

	d, err = NewDecoder(emulator.Config{Sio0Handler: func(lines uint8) {}}, emulator.MDEC_DEPTH_15BIT)
	if err != nil {
		t.Fatal(err)
	}
	frames := []image.Image{image.NewRGBA(image.Rect(0, 0, 16, 16))}
	if _, err := NewViewer(d, frames, 2); !errors.Is(err, ErrNoPad) {
		t.Errorf("expected ErrNoPad, got %v", err)
	}
}

func TestViewerStep(t *testing.T) {
	v := &Viewer{Frames: make([]*ebiten.Image, 3)}
	v.step(-1)
	if v.current != 2 {
		t.Errorf("expected %d, got %d", 2, v.current)
	}
	v.step(2)
	if v.current != 1 {
		t.Errorf("expected %d, got %d", 1, v.current)
	}
}
