package emulator

// State of the exchange between the controller port and a pad
type BusState int

const (
	BUS_STATE_IDLE     BusState = iota // Pad is not selected
	BUS_STATE_TRANSFER BusState = iota // Selected, bytes are being exchanged
	BUS_STATE_ACK      BusState = iota // Acknowledge pulse is scheduled
	BUS_STATE_DSR      BusState = iota // DSR is asserted
)

type Bus struct {
	State    BusState // Bus state
	Clock    bool     // Last level of the clock line
	Bits     uint8    // Bits of the current byte exchanged so far
	Command  uint8    // Command byte being shifted in
	Response uint8    // Response byte being shifted out
}

func (bus *Bus) IsBusy() bool {
	return bus.State != BUS_STATE_IDLE
}

// Starts a new byte
func (bus *Bus) Rewind() {
	bus.Bits = 0
	bus.Command = 0
}

func NewBus(state BusState) *Bus {
	return &Bus{State: state, Clock: true}
}
