package emulator

import (
	"fmt"

	"github.com/zeozeozeo/psxperiph/logger"
)

// Peripheral configuration, set up once before the interconnect is created
type Config struct {
	RamSize uint32 // RAM size in bytes, 2MB if 0

	Gpu   DmaPeer // Channel 2, required
	Cdrom DmaPeer // Channel 3
	Spu   DmaPeer // Channel 4
	Pio   DmaPeer // Channel 5

	Sink InterruptSink // CPU interrupt input

	// Device on the controller port. When `Sio0Handler` is nil a pad of
	// type `Pad` is plugged in
	Pad         GamepadType
	Sio0Handler SioLineHandler
	Sio1Handler SioLineHandler // Device on the serial port

	Verbose bool // Trace DMA transfers in the log
}

// A block of word sized registers
type registerBlock interface {
	Load(offset uint32) uint32
	Store(offset, val, lanes uint32)
}

type mapping struct {
	Range  Range
	Device registerBlock
}

// Global interconnect. It stores all of the peripherals and routes the
// accesses of the CPU to them
type Interconnect struct {
	Ram      *RAM          // Main RAM
	Th       *TimeHandler  // Event scheduler
	IrqState *IrqState     // Interrupt controller
	Dma      *DMA          // DMA controller
	Timers   *Timers       // Root counters
	Sio      [2]*SioPort   // Serial ports
	Pad      *Gamepad      // Pad on the controller port, nil if `Sio0Handler` is set
	Mdec     *MDEC         // Macroblock decoder
	Debugger *Debugger     // Register watchpoints
	mappings []mapping
}

// Creates a new interconnect instance and binds the DMA peers. Fails if a
// channel that must have a peer doesn't
func NewInterconnect(config Config) (*Interconnect, error) {
	th := NewTimeHandler()
	irqState := NewIrqState(config.Sink)
	ram := NewRAM(config.RamSize)

	inter := &Interconnect{
		Ram:      ram,
		Th:       th,
		IrqState: irqState,
		Dma:      NewDMA(ram, th, irqState),
		Timers:   NewTimers(th, irqState),
		Sio: [2]*SioPort{
			NewSioPort(0, th, irqState),
			NewSioPort(1, th, irqState),
		},
		Mdec:     NewMDEC(ram),
		Debugger: NewDebugger(),
	}
	inter.Dma.Verbose = logger.Verbosity(config.Verbose)

	inter.Dma.RegisterDmaWriteHandler(PORT_MDEC_IN, inter.Mdec.DmaWrite)
	inter.Dma.RegisterDmaReadHandler(PORT_MDEC_OUT, inter.Mdec.DmaRead)
	peers := []struct {
		port Port
		peer DmaPeer
	}{
		{PORT_GPU, config.Gpu},
		{PORT_CDROM, config.Cdrom},
		{PORT_SPU, config.Spu},
		{PORT_PIO, config.Pio},
	}
	for _, p := range peers {
		if p.peer != nil {
			inter.Dma.RegisterDmaPeer(p.port, p.peer)
		}
	}
	if err := inter.Dma.CheckPeers(); err != nil {
		return nil, fmt.Errorf("interconnect: %w", err)
	}

	if config.Sio0Handler != nil {
		inter.Sio[0].Handler = config.Sio0Handler
	} else {
		inter.Pad = NewGamepad(config.Pad)
		inter.Pad.Connect(inter.Sio[0], th)
	}
	inter.Sio[1].Handler = config.Sio1Handler

	inter.mappings = []mapping{
		{SIO0_RANGE, inter.Sio[0]},
		{SIO1_RANGE, inter.Sio[1]},
		{IRQ_CONTROL, irqState},
		{DMA_RANGE, inter.Dma},
		{TIMERS_RANGE, inter.Timers},
		{MDEC_RANGE, inter.Mdec},
	}
	return inter, nil
}

func (inter *Interconnect) lookup(abs uint32) (*mapping, bool) {
	for i := range inter.mappings {
		if inter.mappings[i].Range.Contains(abs) {
			return &inter.mappings[i], true
		}
	}
	return nil, false
}

// Loads a value of `size` at `addr`. Unmapped addresses read as 0
func (inter *Interconnect) Load(addr uint32, size AccessSize) uint32 {
	abs := maskRegion(addr)

	if RAM_RANGE.Contains(abs) {
		return inter.Ram.Load(RAM_RANGE.Offset(abs), size)
	}

	if m, ok := inter.lookup(abs); ok {
		shift := (abs & 3) * 8
		word := m.Device.Load(m.Range.Offset(abs) / 4)
		val := (word & laneMask(size, abs)) >> shift
		inter.Debugger.memoryRead(abs, val)
		return val
	}

	logger.Logf(logger.Allow, "interconnect", "unhandled load%d at address 0x%08x", size*8, addr)
	return 0
}

// Stores `val` of `size` into `addr`
func (inter *Interconnect) Store(addr uint32, size AccessSize, val uint32) {
	abs := maskRegion(addr)

	if RAM_RANGE.Contains(abs) {
		inter.Ram.Store(RAM_RANGE.Offset(abs), size, val)
		return
	}

	if m, ok := inter.lookup(abs); ok {
		inter.Debugger.memoryWrite(abs, val)
		lanes := laneMask(size, abs)
		m.Device.Store(m.Range.Offset(abs)/4, (val<<((abs&3)*8))&lanes, lanes)
		return
	}

	logger.Logf(logger.Allow, "interconnect", "unhandled store%d at address 0x%08x <- 0x%x", size*8, addr, val)
}

func (inter *Interconnect) Load32(addr uint32) uint32 {
	return inter.Load(addr, ACCESS_WORD)
}

func (inter *Interconnect) Store32(addr, val uint32) {
	inter.Store(addr, ACCESS_WORD, val)
}

// Advances the emulated time by `cycles`
func (inter *Interconnect) Tick(cycles uint64) {
	inter.Th.Tick(cycles)
}

// Runs scheduled events until `done` returns true, at most `limit` cycles
// from now. Returns false if it didn't happen
func (inter *Interconnect) RunUntil(done func() bool, limit uint64) bool {
	deadline := inter.Th.Cycles + limit
	for !done() {
		date, _, ok := inter.Th.NextEvent()
		if !ok || date > deadline {
			inter.Th.RunUntil(deadline)
			return done()
		}
		inter.Th.RunUntil(date)
	}
	return true
}

// Runs scheduled events until `interrupt` is pending
func (inter *Interconnect) RunUntilInterrupt(interrupt Interrupt, limit uint64) bool {
	return inter.RunUntil(func() bool {
		return inter.IrqState.Pending(interrupt)
	}, limit)
}

// Puts every peripheral back in its power-on state. RAM is not cleared
func (inter *Interconnect) Reset() {
	inter.IrqState.Reset()
	inter.Dma.Reset()
	inter.Timers.Reset()
	for _, sio := range inter.Sio {
		sio.Reset()
	}
	if inter.Pad != nil {
		inter.Pad.Deselect()
	}
	inter.Mdec.Reset()
}
