package emulator

// DMA transfer direction (To/From RAM)
type Direction uint32

const (
	DIRECTION_TO_RAM   Direction = 0
	DIRECTION_FROM_RAM Direction = 1
)

// DMA transfer step
type Step uint32

const (
	STEP_INCREMENT Step = 0
	STEP_DECREMENT Step = 1
)

// DMA transfer synchronization mode
type Sync uint32

const (
	// Transfer starts when the CPU writes to the start bit and transfers
	// everything at once
	SYNC_MANUAL Sync = 0
	// Sync blocks to DMA requests
	SYNC_REQUEST Sync = 1
	// Used to transfer GPU command lists
	SYNC_LINKED_LIST Sync = 2
	// Not a valid mode, kept so the register reads back what was written
	SYNC_RESERVED Sync = 3
)

// Kind of transfer a channel control pattern asks for. "Read" and "write"
// are seen from the peripheral: a read moves data from the device to RAM
type Transfer uint8

const (
	TRANSFER_NONE        Transfer = iota // Unrecognized pattern
	TRANSFER_BURST_READ  Transfer = iota // Device to RAM, all at once
	TRANSFER_BURST_WRITE Transfer = iota // RAM to device, all at once
	TRANSFER_BLOCK_READ  Transfer = iota // Device to RAM, blocks
	TRANSFER_BLOCK_WRITE Transfer = iota // RAM to device, blocks
	TRANSFER_LINKED_LIST Transfer = iota // RAM to GPU, packet chain
	TRANSFER_OTC         Transfer = iota // Ordering table clear
)

var transferNames = []string{
	"unrecognized", "burst read", "burst write", "block read",
	"block write", "linked list", "ordering table clear",
}

func (tr Transfer) String() string {
	return transferNames[tr]
}

// Returns true if the transfer moves data from the device to RAM
func (tr Transfer) IsRead() bool {
	return tr == TRANSFER_BURST_READ || tr == TRANSFER_BLOCK_READ
}

type Channel struct {
	Enable     bool      // Start/busy bit
	Direction  Direction // To or from RAM
	Step       Step      // Address step
	Sync       Sync      // Synchronization mode
	Trigger    bool      // Manual start trigger
	Chop       bool      // If true, the DMA "chops" the transfer and lets the CPU run in the gaps
	ChopDmaSz  uint8     // Chopping DMA window size (log2 number of words)
	ChopCpuSz  uint8     // Chopping CPU window size (log2 number of cycles)
	Dummy      uint8     // Unknown 2 RW bits in configuration register
	Base       uint32    // DMA start address
	BlockSize  uint16    // Size of a block in words
	BlockCount uint16    // Block count, only used when `Sync` is `SYNC_REQUEST`
	Running    bool      // True while a transfer is in flight
	Kind       Transfer  // Kind of the transfer in flight
	Address    uint32    // Start address of the transfer in flight
	Words      uint32    // Length of the transfer in flight
	Ticks      uint64    // Duration of the current step of the transfer
	ListDone   bool      // Linked list walk reached the end marker
}

// Create a new channel instance
func NewChannel() *Channel {
	return &Channel{
		Direction: DIRECTION_TO_RAM,
		Step:      STEP_INCREMENT,
		Sync:      SYNC_MANUAL,
	}
}

func (ch *Channel) Control() uint32 {
	var r uint32 = 0
	r |= uint32(ch.Direction) << 0
	r |= uint32(ch.Step) << 1
	r |= oneIfTrue(ch.Chop) << 8
	r |= uint32(ch.Sync) << 9
	r |= uint32(ch.ChopDmaSz) << 16
	r |= uint32(ch.ChopCpuSz) << 20
	r |= oneIfTrue(ch.Enable) << 24
	r |= oneIfTrue(ch.Trigger) << 28
	r |= uint32(ch.Dummy) << 29

	return r
}

func (ch *Channel) SetControl(val uint32) {
	if val&1 != 0 {
		ch.Direction = DIRECTION_FROM_RAM
	} else {
		ch.Direction = DIRECTION_TO_RAM
	}

	if (val>>1)&1 != 0 {
		ch.Step = STEP_DECREMENT
	} else {
		ch.Step = STEP_INCREMENT
	}

	ch.Chop = (val>>8)&1 != 0
	ch.Sync = Sync((val >> 9) & 3)
	ch.ChopDmaSz = uint8((val >> 16) & 7)
	ch.ChopCpuSz = uint8((val >> 20) & 7)
	ch.Enable = (val>>24)&1 != 0
	ch.Trigger = (val>>28)&1 != 0
	ch.Dummy = uint8((val >> 29) & 3)
}

// Set the channel base address. Only bits [0:23] are significant, so
// only 16MB are addressable by the DMA
func (ch *Channel) SetBase(val uint32) {
	ch.Base = val & 0xffffff
}

// Return value of the Block Control register
func (ch *Channel) BlockControl() uint32 {
	bs := uint32(ch.BlockSize)
	bc := uint32(ch.BlockCount)
	return (bc << 16) | bs
}

// Set value of the Block Control register
func (ch *Channel) SetBlockControl(val uint32) {
	ch.BlockSize = uint16(val)
	ch.BlockCount = uint16(val >> 16)
}

// Decodes the kind of transfer the control register asks `port` to do
func (ch *Channel) Transfer(port Port) Transfer {
	if ch.Step == STEP_DECREMENT {
		if port == PORT_OTC && ch.Direction == DIRECTION_TO_RAM && ch.Sync == SYNC_MANUAL {
			return TRANSFER_OTC
		}
		return TRANSFER_NONE
	}

	switch ch.Sync {
	case SYNC_MANUAL:
		if ch.Direction == DIRECTION_TO_RAM {
			return TRANSFER_BURST_READ
		}
		return TRANSFER_BURST_WRITE
	case SYNC_REQUEST:
		if ch.Direction == DIRECTION_TO_RAM {
			return TRANSFER_BLOCK_READ
		}
		return TRANSFER_BLOCK_WRITE
	case SYNC_LINKED_LIST:
		if port == PORT_GPU && ch.Direction == DIRECTION_FROM_RAM {
			return TRANSFER_LINKED_LIST
		}
	}
	return TRANSFER_NONE
}

// Returns the DMA transfer size in words. `valid` is false for linked
// list mode
func (ch *Channel) TransferSize() (valid bool, size uint32) {
	bs := uint32(ch.BlockSize)
	bc := uint32(ch.BlockCount)
	if bs == 0 {
		bs = 0x10000
	}
	if bc == 0 {
		bc = 0x10000
	}

	switch ch.Sync {
	// for manual mode, only the block size is used
	case SYNC_MANUAL:
		return true, bs
	// in DMA request mode we must transfer `bc` blocks
	case SYNC_REQUEST:
		return true, bc * bs
	}
	// in linked list mode the size is not known ahead of time;
	// we stop when we encounter the end of list marker (0xffffff)
	return false, 0
}

// Set the channel status to `completed` state
func (ch *Channel) Done() {
	ch.Enable = false
	ch.Trigger = false
	ch.Running = false
	ch.Kind = TRANSFER_NONE
	ch.Ticks = 0
	ch.ListDone = false
}

type ChannelSnapshot struct {
	Control      uint32
	Base         uint32
	BlockControl uint32
	Running      bool
	Kind         Transfer
	Address      uint32
	Words        uint32
	Ticks        uint64
	ListDone     bool
}

func (ch *Channel) Snapshot() ChannelSnapshot {
	return ChannelSnapshot{
		Control:      ch.Control(),
		Base:         ch.Base,
		BlockControl: ch.BlockControl(),
		Running:      ch.Running,
		Kind:         ch.Kind,
		Address:      ch.Address,
		Words:        ch.Words,
		Ticks:        ch.Ticks,
		ListDone:     ch.ListDone,
	}
}

func (ch *Channel) Restore(s ChannelSnapshot) {
	ch.SetControl(s.Control)
	ch.SetBase(s.Base)
	ch.SetBlockControl(s.BlockControl)
	ch.Running = s.Running
	ch.Kind = s.Kind
	ch.Address = s.Address
	ch.Words = s.Words
	ch.Ticks = s.Ticks
	ch.ListDone = s.ListDone
}
