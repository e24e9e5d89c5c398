package emulator

import (
	"errors"
	"fmt"

	"github.com/zeozeozeo/psxperiph/logger"
)

// Represents the 7 DMA ports
type Port uint32

const (
	PORT_MDEC_IN  Port = 0 // Macroblock decoder input
	PORT_MDEC_OUT Port = 1 // Macroblock decoder output
	PORT_GPU      Port = 2 // Graphics Processing Unit
	PORT_CDROM    Port = 3 // CD-ROM drive
	PORT_SPU      Port = 4 // Sound Processing Unit
	PORT_PIO      Port = 5 // Extension port
	PORT_OTC      Port = 6 // Used to clear the ordering table
	PORT_COUNT    Port = 7
)

const (
	DMA_CONTROL_RESET uint32 = 0x07654321 // reset value from the Nocash PSX spec

	DMA_CYCLES_PER_WORD uint64 = 1 // Duration of a transfer per word

	// A linked list ends when the next address is all ones
	DMA_LINKED_LIST_END uint32 = 0xffffff
	// Words walked in one linked list slice before the walk yields
	DMA_LINKED_LIST_BUDGET uint32 = 0x10000
	// Delay before a linked list walk that hit the budget resumes
	DMA_LINKED_LIST_RESUME_CYCLES uint64 = 16
	// Completion delay of a linked list that is empty
	DMA_LINKED_LIST_EMPTY_CYCLES uint64 = 16
)

// Register offsets (in words) of a channel, and of the two global
// registers which sit where an 8th channel would be
const (
	DMA_REG_BASE          uint32 = 0
	DMA_REG_BLOCK_CONTROL uint32 = 1
	DMA_REG_CONTROL       uint32 = 2
	DMA_REG_PRIORITY      uint32 = 7*4 + 0
	DMA_REG_INTERRUPT     uint32 = 7*4 + 1
)

var ErrMissingDmaPeer = errors.New("dma: missing peer")

// Called by the DMA with a word aligned RAM address and a length in words
type DmaHandler func(address, length uint32)

// A peripheral that exchanges data with RAM through a DMA channel
type DmaPeer interface {
	DmaRead(address, length uint32)  // Device to RAM
	DmaWrite(address, length uint32) // RAM to device
}

// Direct Memory Access
type DMA struct {
	Control         uint32 // DMA control register
	IrqEn           bool   // Master IRQ enable
	ChannelIrqEn    uint8  // IRQ enable for individual channels
	ChannelIrqFlags uint8  // IRQ flags for individual channels
	// When set the interrupt is active unconditionally, even
	// if `IrqEn` is false
	ForceIrq bool
	// Bits [0:5] of the interrupt registers are RW but I don't
	// know what they're supposed to do so they're just sent back
	// untouched on reads
	IrqDummy uint8
	// Sticky master flag (bit 31 of the interrupt register), cleared once
	// the condition that raised it is acknowledged
	IrqFlag  bool
	Channels [PORT_COUNT]*Channel // The 7 channel instances

	ReadHandlers  [PORT_COUNT]DmaHandler
	WriteHandlers [PORT_COUNT]DmaHandler

	Verbose logger.Verbosity // Trace every transfer

	ram      *RAM
	th       *TimeHandler
	irqState *IrqState
}

// Return a new reset DMA instance
func NewDMA(ram *RAM, th *TimeHandler, irqState *IrqState) *DMA {
	dma := &DMA{
		Control:  DMA_CONTROL_RESET,
		ram:      ram,
		th:       th,
		irqState: irqState,
	}

	// allocate channels
	for i := 0; i < len(dma.Channels); i++ {
		dma.Channels[i] = NewChannel()
		port := Port(i)
		th.SetHandler(PERIPHERAL_DMA0+Peripheral(i), func() {
			dma.Sync(port)
		})
	}

	return dma
}

// Registers the handler called for device to RAM transfers on `port`
func (dma *DMA) RegisterDmaReadHandler(port Port, handler DmaHandler) {
	dma.ReadHandlers[port] = handler
}

// Registers the handler called for RAM to device transfers on `port`
func (dma *DMA) RegisterDmaWriteHandler(port Port, handler DmaHandler) {
	dma.WriteHandlers[port] = handler
}

// Registers both directions of `peer` on `port`
func (dma *DMA) RegisterDmaPeer(port Port, peer DmaPeer) {
	dma.RegisterDmaReadHandler(port, peer.DmaRead)
	dma.RegisterDmaWriteHandler(port, peer.DmaWrite)
}

// Checks that the channels whose transfers are handled by the MDEC and the
// GPU have their handlers. Done once at startup
func (dma *DMA) CheckPeers() error {
	if dma.WriteHandlers[PORT_MDEC_IN] == nil {
		return fmt.Errorf("%w: no write handler on channel %d (MDEC in)", ErrMissingDmaPeer, PORT_MDEC_IN)
	}
	if dma.ReadHandlers[PORT_MDEC_OUT] == nil {
		return fmt.Errorf("%w: no read handler on channel %d (MDEC out)", ErrMissingDmaPeer, PORT_MDEC_OUT)
	}
	if dma.WriteHandlers[PORT_GPU] == nil {
		return fmt.Errorf("%w: no write handler on channel %d (GPU)", ErrMissingDmaPeer, PORT_GPU)
	}
	return nil
}

// Set the control value
func (dma *DMA) SetControl(val uint32) {
	dma.Control = val
}

// Returns true if the priority control register enables `port`
func (dma *DMA) ChannelEnabled(port Port) bool {
	return dma.Control&(1<<(3+4*uint32(port))) != 0
}

// Return the status of the DMA interrupt
func (dma *DMA) Irq() bool {
	channelIrq := dma.ChannelIrqFlags & dma.ChannelIrqEn
	return dma.ForceIrq || (dma.IrqEn && channelIrq != 0)
}

// Return the value of the interrupt register
func (dma *DMA) Interrupt() uint32 {
	var r uint32 = 0
	r |= uint32(dma.IrqDummy)
	r |= oneIfTrue(dma.ForceIrq) << 15
	r |= uint32(dma.ChannelIrqEn) << 16
	r |= oneIfTrue(dma.IrqEn) << 23
	r |= uint32(dma.ChannelIrqFlags) << 24
	r |= oneIfTrue(dma.IrqFlag) << 31
	return r
}

// Set the value of the interrupt register within the byte lanes of
// `lanes`. Enable bits are assigned directly. Flags follow the same
// narrowing rule as the interrupt controller: writing 0 to a flag clears it
// only if the channel's enable bit was set
func (dma *DMA) SetInterrupt(val uint32, lanes uint32) {
	enables := dma.ChannelIrqEn
	v := combine(dma.Interrupt(), val, lanes)

	// unknown what bits [5:0] do
	dma.IrqDummy = uint8(v & 0x3f)
	dma.ForceIrq = (v>>15)&1 != 0
	dma.ChannelIrqEn = uint8((v >> 16) & 0x7f)
	dma.IrqEn = (v>>23)&1 != 0

	flagLanes := uint8((lanes >> 24) & 0x7f)
	keep := uint8((val>>24)&0x7f) | ^enables
	dma.ChannelIrqFlags = (dma.ChannelIrqFlags &^ flagLanes) | (dma.ChannelIrqFlags & keep & flagLanes)

	if !dma.Irq() {
		dma.IrqFlag = false
	}
	dma.updateIrq()
}

// Raises the DMA interrupt when the gated condition newly becomes true
func (dma *DMA) updateIrq() {
	if dma.Irq() && !dma.IrqFlag {
		dma.IrqFlag = true
		dma.irqState.SetHigh(INTERRUPT_DMA)
	}
}

func (dma *DMA) Load(offset uint32) uint32 {
	switch offset {
	case DMA_REG_PRIORITY:
		return dma.Control
	case DMA_REG_INTERRUPT:
		return dma.Interrupt()
	}

	index := offset / 4
	if index >= uint32(PORT_COUNT) {
		logUnhandled("dma", "read", offset)
		return 0
	}
	ch := dma.Channels[index]

	switch offset % 4 {
	case DMA_REG_BASE:
		return ch.Base
	case DMA_REG_BLOCK_CONTROL:
		return ch.BlockControl()
	case DMA_REG_CONTROL:
		return ch.Control()
	}
	logUnhandled("dma", "read", offset)
	return 0
}

func (dma *DMA) Store(offset, val, lanes uint32) {
	switch offset {
	case DMA_REG_PRIORITY:
		dma.SetControl(combine(dma.Control, val, lanes))
		return
	case DMA_REG_INTERRUPT:
		dma.SetInterrupt(val, lanes)
		return
	}

	index := offset / 4
	if index >= uint32(PORT_COUNT) {
		logUnhandled("dma", "write", offset)
		return
	}
	port := Port(index)
	ch := dma.Channels[port]

	switch offset % 4 {
	case DMA_REG_BASE:
		ch.SetBase(combine(ch.Base, val, lanes))
	case DMA_REG_BLOCK_CONTROL:
		ch.SetBlockControl(combine(ch.BlockControl(), val, lanes))
	case DMA_REG_CONTROL:
		dma.SetChannelControl(port, combine(ch.Control(), val, lanes))
	default:
		logUnhandled("dma", "write", offset)
	}
}

// Writes the control register of a channel, starting a transfer if the
// start bit is set and the channel is enabled in the priority control
// register
func (dma *DMA) SetChannelControl(port Port, val uint32) {
	ch := dma.Channels[port]

	if ch.Running {
		// the value is latched but the scheduled completion still happens
		ch.SetControl(val)
		if ch.Enable {
			logger.Logf(logger.Allow, "dma", "channel %d: transfer requested while running (control 0x%08x)", port, val)
		}
		return
	}

	ch.SetControl(val)
	if !ch.Enable {
		return
	}
	if !dma.ChannelEnabled(port) {
		logger.Logf(logger.Allow, "dma", "channel %d: not enabled in priority control (control 0x%08x)", port, val)
		return
	}
	dma.start(port)
}

func (dma *DMA) start(port Port) {
	ch := dma.Channels[port]
	kind := ch.Transfer(port)
	address := ch.Base & dma.ram.Mask() &^ 3
	_, words := ch.TransferSize()

	switch kind {
	case TRANSFER_BURST_READ, TRANSFER_BLOCK_READ:
		if dma.ReadHandlers[port] == nil {
			logger.Logf(logger.Allow, "dma", "channel %d: %s without a peer", port, kind)
			return
		}
		// the device delivers its data when the transfer completes
		dma.begin(port, kind, address, words)
		dma.schedule(port, dmaTicks(words))
	case TRANSFER_BURST_WRITE, TRANSFER_BLOCK_WRITE:
		if dma.WriteHandlers[port] == nil {
			logger.Logf(logger.Allow, "dma", "channel %d: %s without a peer", port, kind)
			return
		}
		dma.begin(port, kind, address, words)
		dma.WriteHandlers[port](address, words)
		dma.schedule(port, dmaTicks(words))
	case TRANSFER_LINKED_LIST:
		if dma.WriteHandlers[port] == nil {
			logger.Logf(logger.Allow, "dma", "channel %d: %s without a peer", port, kind)
			return
		}
		dma.begin(port, kind, ch.Base, 0)
		dma.linkedListStep(port)
	case TRANSFER_OTC:
		dma.begin(port, kind, address, words)
		dma.clearOrderingTable(address, words)
		dma.schedule(port, dmaTicks(words))
	default:
		logger.Logf(logger.Allow, "dma", "channel %d: unrecognized control 0x%08x", port, ch.Control())
	}
}

func (dma *DMA) begin(port Port, kind Transfer, address, words uint32) {
	ch := dma.Channels[port]
	ch.Running = true
	ch.Kind = kind
	ch.Address = address
	ch.Words = words
	ch.ListDone = false
	logger.Logf(&dma.Verbose, "dma", "channel %d: %s 0x%06x, %d words", port, kind, address, words)
}

func (dma *DMA) schedule(port Port, ticks uint64) {
	dma.Channels[port].Ticks = ticks
	dma.th.SetNextSyncDelta(PERIPHERAL_DMA0+Peripheral(port), ticks)
}

// Duration of a transfer of `words` words, never zero so that completion
// always happens after the start
func dmaTicks(words uint32) uint64 {
	if words == 0 {
		return DMA_CYCLES_PER_WORD
	}
	return uint64(words) * DMA_CYCLES_PER_WORD
}

// Walks the linked list from the channel base address, handing each packet
// payload to the write handler. The walk stops at the end marker or when
// the word budget of the slice is spent, in which case it resumes from a
// scheduled event
func (dma *DMA) linkedListStep(port Port) {
	ch := dma.Channels[port]
	handler := dma.WriteHandlers[port]
	addr := ch.Base & 0xffffff
	var total uint32

	for {
		if addr == DMA_LINKED_LIST_END {
			ch.Base = addr
			ch.ListDone = true
			if total == 0 {
				dma.schedule(port, DMA_LINKED_LIST_EMPTY_CYCLES)
			} else {
				dma.schedule(port, dmaTicks(total))
			}
			return
		}

		if total >= DMA_LINKED_LIST_BUDGET {
			ch.Base = addr
			dma.schedule(port, DMA_LINKED_LIST_RESUME_CYCLES)
			return
		}

		header := dma.ram.Load32(addr)
		size := header >> 24
		if size > 0 {
			handler((addr+4)&dma.ram.Mask(), size)
		}

		total += size + 1
		addr = header & 0xffffff
	}
}

// Builds the reverse linked list used as an empty ordering table: every
// entry points to the previous word, the last one holds the end marker
func (dma *DMA) clearOrderingTable(address, words uint32) {
	for ; words > 1; words-- {
		dma.ram.Store32(address, (address-4)&0xffffff)
		address -= 4
	}
	dma.ram.Store32(address, DMA_LINKED_LIST_END)
}

// Handles the scheduled event of `port`: either resumes a linked list walk
// or completes the transfer
func (dma *DMA) Sync(port Port) {
	ch := dma.Channels[port]
	if !ch.Running {
		return
	}

	switch {
	case ch.Kind == TRANSFER_LINKED_LIST && !ch.ListDone:
		dma.linkedListStep(port)
		return
	case ch.Kind.IsRead():
		if handler := dma.ReadHandlers[port]; handler != nil {
			handler(ch.Address, ch.Words)
		}
	}
	dma.finish(port)
}

// Completes the transfer on `port` and flags its interrupt
func (dma *DMA) finish(port Port) {
	dma.Channels[port].Done()
	dma.ChannelIrqFlags |= 1 << port
	dma.updateIrq()
	logger.Logf(&dma.Verbose, "dma", "channel %d: done", port)
}

func (dma *DMA) Reset() {
	dma.Control = DMA_CONTROL_RESET
	dma.IrqEn = false
	dma.ChannelIrqEn = 0
	dma.ChannelIrqFlags = 0
	dma.ForceIrq = false
	dma.IrqDummy = 0
	dma.IrqFlag = false
	for i, ch := range dma.Channels {
		*ch = *NewChannel()
		dma.th.RemoveNextSync(PERIPHERAL_DMA0 + Peripheral(i))
	}
}

type DMASnapshot struct {
	Control   uint32
	Interrupt uint32
	Channels  [PORT_COUNT]ChannelSnapshot
}

func (dma *DMA) Snapshot() DMASnapshot {
	s := DMASnapshot{Control: dma.Control, Interrupt: dma.Interrupt()}
	for i, ch := range dma.Channels {
		s.Channels[i] = ch.Snapshot()
	}
	return s
}

func (dma *DMA) Restore(s DMASnapshot) {
	dma.Control = s.Control
	dma.IrqDummy = uint8(s.Interrupt & 0x3f)
	dma.ForceIrq = (s.Interrupt>>15)&1 != 0
	dma.ChannelIrqEn = uint8((s.Interrupt >> 16) & 0x7f)
	dma.IrqEn = (s.Interrupt>>23)&1 != 0
	dma.ChannelIrqFlags = uint8((s.Interrupt >> 24) & 0x7f)
	dma.IrqFlag = (s.Interrupt>>31)&1 != 0
	for i, ch := range dma.Channels {
		ch.Restore(s.Channels[i])
	}
}
