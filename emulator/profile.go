package emulator

type ButtonState int

const (
	BUTTON_STATE_PRESSED  ButtonState = 0
	BUTTON_STATE_RELEASED ButtonState = 1
)

type Button uint

const (
	BUTTON_SELECT   Button = 0
	BUTTON_START    Button = 3
	BUTTON_DUP      Button = 4
	BUTTON_DRIGHT   Button = 5
	BUTTON_DDOWN    Button = 6
	BUTTON_DLEFT    Button = 7
	BUTTON_L2       Button = 8
	BUTTON_R2       Button = 9
	BUTTON_L1       Button = 10
	BUTTON_R1       Button = 11
	BUTTON_TRIANGLE Button = 12
	BUTTON_CIRCLE   Button = 13
	BUTTON_CROSS    Button = 14
	BUTTON_SQUARE   Button = 15
)

// All gamepad buttons
var GamepadButtons = []Button{
	BUTTON_SELECT,
	BUTTON_START,
	BUTTON_DUP,
	BUTTON_DRIGHT,
	BUTTON_DDOWN,
	BUTTON_DLEFT,
	BUTTON_L2,
	BUTTON_R2,
	BUTTON_L1,
	BUTTON_R1,
	BUTTON_TRIANGLE,
	BUTTON_CIRCLE,
	BUTTON_CROSS,
	BUTTON_SQUARE,
}

type GamepadType int

const (
	GAMEPAD_TYPE_DISCONNECTED GamepadType = iota // Gamepad is not connected
	GAMEPAD_TYPE_DIGITAL      GamepadType = iota // SCPH-1080: Digital Joypad
)

// Interface for controller profiles. A byte exchange has two halves: the
// response is shifted out while the command comes in, the acknowledge is
// decided once the whole command byte is known
type Profile interface {
	Response(seq uint8) uint8                        // Byte sent back at position `seq`
	Acknowledge(seq, cmd uint8) bool                 // Whether the pad wants the next byte
	SetButtonState(button Button, state ButtonState) // Handles button events
	Buttons() uint16                                 // Button state, 1 bit per button
	SetButtons(state uint16)
}

// Empty gamepad slot that implements Profile
type DummyPadProfile struct{}

func (profile *DummyPadProfile) Response(seq uint8) uint8 {
	return 0xff
}

func (profile *DummyPadProfile) Acknowledge(seq, cmd uint8) bool {
	return false
}

func (profile *DummyPadProfile) SetButtonState(button Button, state ButtonState) {
	// NOP
}

func (profile *DummyPadProfile) Buttons() uint16 {
	return 0xffff
}

func (profile *DummyPadProfile) SetButtons(state uint16) {}

// Returns a new instance of DummyPadProfile
func NewDummyPad() *DummyPadProfile {
	return &DummyPadProfile{}
}

// SCPH-1080: Digital Joypad (implements Profile)
type DigitalPadProfile struct {
	State uint16 // Only 1 bit per button, 2 bytes. 0 means pressed
}

func (profile *DigitalPadProfile) Response(seq uint8) uint8 {
	switch seq {
	case 0: // does the command target a controller?
		return 0xff
	case 1: // 0x41: we are a digital controller
		return 0x41
	case 2: // ID byte
		return 0x5a
	case 3: // cross, start, select
		return uint8(profile.State)
	case 4: // shoulder and shape buttons
		return uint8(profile.State >> 8)
	}
	return 0xff
}

func (profile *DigitalPadProfile) Acknowledge(seq, cmd uint8) bool {
	switch seq {
	case 0:
		return cmd == 0x01
	case 1: // read buttons
		return cmd == 0x42
	case 2, 3:
		return true
	}
	// last byte, or edge cases
	return false
}

func (profile *DigitalPadProfile) SetButtonState(button Button, state ButtonState) {
	mask := uint16(1) << button

	switch state {
	case BUTTON_STATE_PRESSED:
		profile.State &^= mask
	case BUTTON_STATE_RELEASED:
		profile.State |= mask
	}
}

func (profile *DigitalPadProfile) Buttons() uint16 {
	return profile.State
}

func (profile *DigitalPadProfile) SetButtons(state uint16) {
	profile.State = state
}

// SCPH-1080: Digital Joypad
func NewDigitalPad() *DigitalPadProfile {
	return &DigitalPadProfile{
		State: 0xffff,
	}
}
