package emulator

// Keeps track of the emulation time and dispatches the timed events of every
// peripheral. Nothing here runs in parallel: exactly one handler fires at a
// time and the time only ever moves forward
type TimeHandler struct {
	// Keeps track of the current execution time. It is measured in
	// the CPU clock at 33.8688MHz (~29.525960700946ns)
	Cycles     uint64
	TimeSheets [PERIPHERAL_COUNT]*TimeSheet
}

// Represents a TimeSheet index. The order is also the dispatch order of
// events that are due on the same cycle
type Peripheral uint32

const (
	PERIPHERAL_DMA0   Peripheral = iota // MDEC in
	PERIPHERAL_DMA1   Peripheral = iota // MDEC out
	PERIPHERAL_DMA2   Peripheral = iota // GPU
	PERIPHERAL_DMA3   Peripheral = iota // CD-ROM
	PERIPHERAL_DMA4   Peripheral = iota // SPU
	PERIPHERAL_DMA5   Peripheral = iota // Extension port
	PERIPHERAL_DMA6   Peripheral = iota // Ordering table clear
	PERIPHERAL_TIMER0 Peripheral = iota // Root counter 0
	PERIPHERAL_TIMER1 Peripheral = iota // Root counter 1
	PERIPHERAL_TIMER2 Peripheral = iota // Root counter 2
	PERIPHERAL_SIO0   Peripheral = iota // Controller and memory card port
	PERIPHERAL_SIO1   Peripheral = iota // Serial port
	PERIPHERAL_PAD    Peripheral = iota // Controller acknowledge pulse
	PERIPHERAL_COUNT  Peripheral = iota
)

var peripheralNames = [PERIPHERAL_COUNT]string{
	"dma0", "dma1", "dma2", "dma3", "dma4", "dma5", "dma6",
	"timer0", "timer1", "timer2",
	"sio0", "sio1", "pad",
}

func (p Peripheral) String() string {
	if p < PERIPHERAL_COUNT {
		return peripheralNames[p]
	}
	return "unknown"
}

// Returns a new instance of TimeHandler
func NewTimeHandler() *TimeHandler {
	th := &TimeHandler{}
	for i := range th.TimeSheets {
		th.TimeSheets[i] = NewTimeSheet()
	}
	return th
}

// Sets the function called when the peripheral reaches its next
// synchronization date. Handlers are bound once at startup
func (th *TimeHandler) SetHandler(from Peripheral, handler func()) {
	th.TimeSheets[from].Handler = handler
}

// Schedules the next synchronization of a peripheral `delta` cycles from
// now, replacing any previously scheduled one
func (th *TimeHandler) SetNextSyncDelta(from Peripheral, delta uint64) {
	sheet := th.TimeSheets[from]
	sheet.NextSync = th.Cycles + delta
	sheet.Pending = true
}

// Cancels the next synchronization of a peripheral
func (th *TimeHandler) RemoveNextSync(from Peripheral) {
	th.TimeSheets[from].Pending = false
}

// Returns true if the peripheral reached the time of the next forced
// synchronization
func (th *TimeHandler) NeedsSync(from Peripheral) bool {
	return th.TimeSheets[from].NeedsSync(th.Cycles)
}

// Returns true if the peripheral has an event scheduled
func (th *TimeHandler) Scheduled(from Peripheral) bool {
	return th.TimeSheets[from].Pending
}

// Returns the date of the earliest scheduled event and the peripheral it
// belongs to. `ok` is false if nothing is scheduled
func (th *TimeHandler) NextEvent() (date uint64, from Peripheral, ok bool) {
	for i, sheet := range th.TimeSheets {
		if !sheet.Pending {
			continue
		}
		if !ok || sheet.NextSync < date {
			date = sheet.NextSync
			from = Peripheral(i)
			ok = true
		}
	}
	return date, from, ok
}

// Advance the current time by `cycles`, firing every event that becomes due
func (th *TimeHandler) Tick(cycles uint64) {
	th.RunUntil(th.Cycles + cycles)
}

// Advance the current time to `target`, firing every event that is due on
// the way in chronological order. Handlers may schedule new events, those
// fire too if they are due before `target`
func (th *TimeHandler) RunUntil(target uint64) {
	for {
		date, from, ok := th.NextEvent()
		if !ok || date > target {
			break
		}
		if date > th.Cycles {
			th.Cycles = date
		}

		sheet := th.TimeSheets[from]
		sheet.Pending = false
		if sheet.Handler != nil {
			sheet.Handler()
		}
	}

	if target > th.Cycles {
		th.Cycles = target
	}
}

// Scheduler state of every peripheral, part of the machine snapshot
type TimeHandlerSnapshot struct {
	Cycles   uint64
	NextSync [PERIPHERAL_COUNT]uint64
	Pending  [PERIPHERAL_COUNT]bool
}

func (th *TimeHandler) Snapshot() TimeHandlerSnapshot {
	s := TimeHandlerSnapshot{Cycles: th.Cycles}
	for i, sheet := range th.TimeSheets {
		s.NextSync[i] = sheet.NextSync
		s.Pending[i] = sheet.Pending
	}
	return s
}

// Restores the scheduler. Handlers are not part of the state, the ones bound
// at startup stay in place
func (th *TimeHandler) Restore(s TimeHandlerSnapshot) {
	th.Cycles = s.Cycles
	for i, sheet := range th.TimeSheets {
		sheet.NextSync = s.NextSync[i]
		sheet.Pending = s.Pending[i]
	}
}

// Keeps track of the next synchronization of a peripheral
type TimeSheet struct {
	NextSync uint64 // Date of the next synchronization
	Pending  bool   // True if `NextSync` is meaningful
	Handler  func() // Called when `NextSync` is reached
}

// Returns a new TimeSheet instance
func NewTimeSheet() *TimeSheet {
	return &TimeSheet{}
}

// Returns true if the peripheral reached `NextSync`
func (sheet *TimeSheet) NeedsSync(cycles uint64) bool {
	return sheet.Pending && sheet.NextSync <= cycles
}
