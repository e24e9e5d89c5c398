package player

import (
	"errors"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/zeozeozeo/psxperiph/emulator"
)

// Keyboard layout of the emulated pad
var keyMap = map[ebiten.Key]emulator.Button{
	ebiten.KeyArrowUp:    emulator.BUTTON_DUP,
	ebiten.KeyArrowDown:  emulator.BUTTON_DDOWN,
	ebiten.KeyArrowLeft:  emulator.BUTTON_DLEFT,
	ebiten.KeyArrowRight: emulator.BUTTON_DRIGHT,
	ebiten.KeyEnter:      emulator.BUTTON_START,
	ebiten.KeyBackspace:  emulator.BUTTON_SELECT,
	ebiten.KeyX:          emulator.BUTTON_CROSS,
	ebiten.KeyZ:          emulator.BUTTON_SQUARE,
	ebiten.KeyS:          emulator.BUTTON_CIRCLE,
	ebiten.KeyA:          emulator.BUTTON_TRIANGLE,
}

// Shows decoded frames in a window. The keyboard drives the pad on the
// controller port, which is read back through SIO0 every tick: start
// pauses, left and right step through the frames
type Viewer struct {
	Frames     []*ebiten.Image
	Width      int
	Height     int
	FrameTicks int // Ticks per frame
	Decoder    *Decoder

	current int
	ticks   int
	paused  bool
	buttons uint16 // Last polled pad state
}

// An Ebitengine game that shows `frames` at `fps`
func NewViewer(decoder *Decoder, frames []image.Image, fps int) (*Viewer, error) {
	if len(frames) == 0 {
		return nil, errors.New("player: no frames to show")
	}
	if decoder.Inter.Pad == nil {
		return nil, ErrNoPad
	}
	if fps <= 0 {
		fps = 1
	}

	b := frames[0].Bounds()
	v := &Viewer{
		Width:      b.Dx(),
		Height:     b.Dy(),
		FrameTicks: ebiten.DefaultTPS / fps,
		Decoder:    decoder,
		buttons:    0xffff,
	}
	if v.FrameTicks < 1 {
		v.FrameTicks = 1
	}
	for _, frame := range frames {
		v.Frames = append(v.Frames, ebiten.NewImageFromImage(frame))
	}
	return v, nil
}

func (v *Viewer) step(n int) {
	v.current = (v.current + n + len(v.Frames)) % len(v.Frames)
}

func (v *Viewer) Update() error {
	pad := v.Decoder.Inter.Pad
	for key, button := range keyMap {
		state := emulator.BUTTON_STATE_RELEASED
		if ebiten.IsKeyPressed(key) {
			state = emulator.BUTTON_STATE_PRESSED
		}
		pad.SetButtonState(button, state)
	}

	buttons, err := v.Decoder.PollPad()
	if err != nil {
		return err
	}
	// buttons are active low
	pressed := v.buttons &^ buttons
	v.buttons = buttons

	if pressed&(1<<emulator.BUTTON_START) != 0 {
		v.paused = !v.paused
	}
	if pressed&(1<<emulator.BUTTON_DRIGHT) != 0 {
		v.step(1)
	}
	if pressed&(1<<emulator.BUTTON_DLEFT) != 0 {
		v.step(-1)
	}

	if !v.paused {
		v.ticks++
		if v.ticks >= v.FrameTicks {
			v.ticks = 0
			v.step(1)
		}
	}
	return nil
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.DrawImage(v.Frames[v.current], nil)
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.Width, v.Height
}

// Opens the window and blocks until it is closed
func (v *Viewer) Run(title string) error {
	ebiten.SetWindowSize(v.Width, v.Height)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(v)
}
