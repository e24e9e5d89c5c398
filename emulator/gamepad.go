package emulator

const (
	// Delay between the end of a byte and the acknowledge pulse
	GAMEPAD_ACK_DELAY uint64 = 450
	// Length of the acknowledge pulse on the DSR line
	GAMEPAD_ACK_DURATION uint64 = 10
)

// A pad plugged into the controller port. It only sees the port's lines:
// DTR selects it, the clock edges move the bits, and it acknowledges a byte
// by pulsing DSR
type Gamepad struct {
	Profile Profile // Implements Profile
	Seq     uint8   // Current position in reply sequence
	Active  bool    // If false, the current command is done processing
	Bus     *Bus    // Bus state

	sio *SioPort
	th  *TimeHandler
}

// Returns a new Gamepad instance
func NewGamepad(profileType GamepadType) *Gamepad {
	gp := &Gamepad{Bus: NewBus(BUS_STATE_IDLE)}
	switch profileType {
	case GAMEPAD_TYPE_DISCONNECTED:
		gp.Profile = NewDummyPad()
	case GAMEPAD_TYPE_DIGITAL:
		gp.Profile = NewDigitalPad()
	}
	return gp
}

// Plugs the pad into `sio`
func (gp *Gamepad) Connect(sio *SioPort, th *TimeHandler) {
	gp.sio = sio
	gp.th = th
	sio.Handler = gp.Lines
	th.SetHandler(PERIPHERAL_PAD, gp.Sync)
}

// Shortcut for gp.Profile.SetButtonState(button, state)
func (gp *Gamepad) SetButtonState(button Button, state ButtonState) {
	gp.Profile.SetButtonState(button, state)
}

func (gp *Gamepad) Select() {
	// prepare for command
	gp.Active = true
	gp.Seq = 0
	gp.Bus.State = BUS_STATE_TRANSFER
	gp.Bus.Rewind()
}

func (gp *Gamepad) Deselect() {
	gp.Active = false
	gp.Seq = 0
	if gp.Bus.State == BUS_STATE_DSR {
		gp.sio.InputLine(SIO_IN_DSR, 0)
	}
	gp.Bus.State = BUS_STATE_IDLE
	gp.Bus.Rewind()
	gp.th.RemoveNextSync(PERIPHERAL_PAD)
}

// Handles a change of the port's output lines
func (gp *Gamepad) Lines(lines uint8) {
	bus := gp.Bus
	if lines&SIO_OUT_DTR == 0 {
		if bus.IsBusy() {
			gp.Deselect()
		}
		bus.Clock = lines&SIO_OUT_CLOCK != 0
		return
	}
	if !bus.IsBusy() {
		gp.Select()
	}

	clock := lines&SIO_OUT_CLOCK != 0
	switch {
	case bus.Clock && !clock:
		// falling edge: drive the next response bit
		if bus.Bits == 0 {
			bus.Response = 0xff
			if gp.Active {
				bus.Response = gp.Profile.Response(gp.Seq)
			}
		}
		gp.sio.InputLine(SIO_IN_DATA, (bus.Response>>bus.Bits)&1)
	case !bus.Clock && clock:
		// rising edge: sample the command bit
		bus.Command |= (lines & SIO_OUT_DATA) << bus.Bits
		bus.Bits++
		if bus.Bits == 8 {
			gp.endOfByte()
		}
	}
	bus.Clock = clock
}

func (gp *Gamepad) endOfByte() {
	bus := gp.Bus
	ack := gp.Active && gp.Profile.Acknowledge(gp.Seq, bus.Command)
	gp.Active = ack
	gp.Seq++
	bus.Rewind()

	if ack {
		bus.State = BUS_STATE_ACK
		gp.th.SetNextSyncDelta(PERIPHERAL_PAD, GAMEPAD_ACK_DELAY)
	}
}

// Drives the acknowledge pulse
func (gp *Gamepad) Sync() {
	switch gp.Bus.State {
	case BUS_STATE_ACK:
		gp.Bus.State = BUS_STATE_DSR
		gp.sio.InputLine(SIO_IN_DSR, SIO_IN_DSR)
		gp.th.SetNextSyncDelta(PERIPHERAL_PAD, GAMEPAD_ACK_DURATION)
	case BUS_STATE_DSR:
		// DSR pulse is over
		gp.Bus.State = BUS_STATE_TRANSFER
		gp.sio.InputLine(SIO_IN_DSR, 0)
	}
}

type GamepadSnapshot struct {
	Seq      uint8
	Active   bool
	State    BusState
	Clock    bool
	Bits     uint8
	Command  uint8
	Response uint8
	Buttons  uint16
}

func (gp *Gamepad) Snapshot() GamepadSnapshot {
	return GamepadSnapshot{
		Seq:      gp.Seq,
		Active:   gp.Active,
		State:    gp.Bus.State,
		Clock:    gp.Bus.Clock,
		Bits:     gp.Bus.Bits,
		Command:  gp.Bus.Command,
		Response: gp.Bus.Response,
		Buttons:  gp.Profile.Buttons(),
	}
}

func (gp *Gamepad) Restore(s GamepadSnapshot) {
	gp.Seq = s.Seq
	gp.Active = s.Active
	gp.Bus.State = s.State
	gp.Bus.Clock = s.Clock
	gp.Bus.Bits = s.Bits
	gp.Bus.Command = s.Command
	gp.Bus.Response = s.Response
	gp.Profile.SetButtons(s.Buttons)
}
