package emulator

// Receives the state of the interrupt line going to the CPU
type InterruptSink interface {
	SetInterruptLine(asserted bool)
}

// Adapts a function to the InterruptSink interface
type InterruptSinkFunc func(asserted bool)

func (f InterruptSinkFunc) SetInterruptLine(asserted bool) {
	f(asserted)
}

// State of the interrupt register
type IrqState struct {
	Status uint32        // Interrupt status (pending requests)
	Mask   uint32        // Interrupt mask
	Line   bool          // Last state of the CPU interrupt line
	Sink   InterruptSink // CPU side of the interrupt line, may be nil
}

// Represents an interrupt source. The value is the bit index in the status
// and mask registers
type Interrupt uint32

const (
	INTERRUPT_VBLANK     Interrupt = 0  // GPU is in vertical blanking
	INTERRUPT_GPU        Interrupt = 1  // GPU IRQ command
	INTERRUPT_CDROM      Interrupt = 2  // CD-ROM controller
	INTERRUPT_DMA        Interrupt = 3  // DMA transfer complete
	INTERRUPT_TIMER0     Interrupt = 4  // Root counter 0
	INTERRUPT_TIMER1     Interrupt = 5  // Root counter 1
	INTERRUPT_TIMER2     Interrupt = 6  // Root counter 2
	INTERRUPT_PADMEMCARD Interrupt = 7  // SIO0, controllers and memory cards
	INTERRUPT_SIO        Interrupt = 8  // SIO1, serial port
	INTERRUPT_SPU        Interrupt = 9  // Sound processing unit
	INTERRUPT_PIO        Interrupt = 10 // Extension port / lightpen
)

// Register offsets (in words) of the interrupt controller
const (
	IRQ_REG_STATUS uint32 = 0
	IRQ_REG_MASK   uint32 = 1
)

// Returns a new interrupt instance
func NewIrqState(sink InterruptSink) *IrqState {
	return &IrqState{Sink: sink}
}

// Returns true if any interrupt is active
func (state *IrqState) Active() bool {
	return (state.Status & state.Mask) != 0
}

// Requests an interrupt
func (state *IrqState) SetHigh(interrupt Interrupt) {
	state.Status |= 1 << interrupt
	state.update()
}

// Returns true if `interrupt` is pending
func (state *IrqState) Pending(interrupt Interrupt) bool {
	return state.Status&(1<<interrupt) != 0
}

// Writes to the status register within the byte lanes selected by `lanes`.
// Software can only narrow the pending bits, and only the ones that are
// enabled in the mask: writing 0 to a masked-in bit acknowledges it, bits
// masked off keep their value whatever is written
func (state *IrqState) Acknowledge(ack uint32, lanes uint32) {
	keep := ack | ^state.Mask
	state.Status = combine(state.Status, state.Status&keep, lanes)
	state.update()
}

// Replaces the mask register
func (state *IrqState) SetMask(mask uint32) {
	state.Mask = mask
	state.update()
}

func (state *IrqState) Load(offset uint32) uint32 {
	switch offset {
	case IRQ_REG_STATUS:
		return state.Status
	case IRQ_REG_MASK:
		return state.Mask
	}
	logUnhandled("irq", "read", offset)
	return 0
}

func (state *IrqState) Store(offset, val, lanes uint32) {
	switch offset {
	case IRQ_REG_STATUS:
		state.Acknowledge(val, lanes)
	case IRQ_REG_MASK:
		state.SetMask(combine(state.Mask, val, lanes))
	default:
		logUnhandled("irq", "write", offset)
	}
}

func (state *IrqState) Reset() {
	state.Status = 0
	state.Mask = 0
	state.update()
}

// Drives the CPU interrupt line, the sink only hears about changes
func (state *IrqState) update() {
	active := state.Active()
	if active == state.Line {
		return
	}
	state.Line = active
	if state.Sink != nil {
		state.Sink.SetInterruptLine(active)
	}
}

type IrqStateSnapshot struct {
	Status uint32
	Mask   uint32
	Line   bool
}

func (state *IrqState) Snapshot() IrqStateSnapshot {
	return IrqStateSnapshot{Status: state.Status, Mask: state.Mask, Line: state.Line}
}

func (state *IrqState) Restore(s IrqStateSnapshot) {
	state.Status = s.Status
	state.Mask = s.Mask
	state.Line = s.Line
	if state.Sink != nil {
		state.Sink.SetInterruptLine(state.Line)
	}
}
