package emulator

// Represents a timer clock source
type Clock uint8

const (
	CLOCK_SYSCLOCK      Clock = iota // CPU clock at 33.8688MHz
	CLOCK_SYSCLOCK_DIV8 Clock = iota // CPU clock divided by 8 (~4.2336MHz)
	CLOCK_GPU_DOTCLOCK  Clock = iota // GPU's dotclock
	CLOCK_GPU_HSYNC     Clock = iota // GPU's HSync signal
)

// Number of CPU cycles per counter tick. The video clocks are approximated
// by fixed divisors so that the count stays a pure function of the time
func (c Clock) Divider() uint64 {
	switch c {
	case CLOCK_SYSCLOCK_DIV8:
		return 8
	case CLOCK_GPU_DOTCLOCK:
		return 5
	case CLOCK_GPU_HSYNC:
		return 2150
	}
	return 1
}

// All timers use different values for sysclocks for some reason. Indexed
// by the clock source field of the mode register (bits 8 and 9)
var ClockSourceLookupTable = [3][4]Clock{
	// timer 0
	{
		CLOCK_SYSCLOCK, CLOCK_GPU_DOTCLOCK,
		CLOCK_SYSCLOCK, CLOCK_GPU_DOTCLOCK,
	},
	// timer 1
	{
		CLOCK_SYSCLOCK, CLOCK_GPU_HSYNC,
		CLOCK_SYSCLOCK, CLOCK_GPU_HSYNC,
	},
	// timer 2
	{
		CLOCK_SYSCLOCK, CLOCK_SYSCLOCK,
		CLOCK_SYSCLOCK_DIV8, CLOCK_SYSCLOCK_DIV8,
	},
}

// Mode register bits
const (
	TIMER_MODE_STOP        uint16 = 0x001 // Counter is halted
	TIMER_MODE_RESET       uint16 = 0x004 // Zero the counter on a mode write
	TIMER_MODE_COUNTTARGET uint16 = 0x008 // Count up to the target instead of 0xffff
	TIMER_MODE_IRQTARGET   uint16 = 0x010 // Interrupt when the target is reached
	TIMER_MODE_IRQOVERFLOW uint16 = 0x020 // Interrupt when the counter wraps
	TIMER_MODE_REPEAT      uint16 = 0x040 // Keep generating boundary events
	TIMER_MODE_CLC         uint16 = 0x100 // Video clock source (timers 0 and 1)
	TIMER_MODE_DIV         uint16 = 0x200 // System clock / 8 (timer 2)
)

// Register offsets (in words) of a timer, each timer spans 4 words
const (
	TIMER_REG_COUNT  uint32 = 0
	TIMER_REG_MODE   uint32 = 1
	TIMER_REG_TARGET uint32 = 2
)

// A root counter. The counter value is never ticked: it is derived from
// the time elapsed since `Anchor`, and the time handler only gets an event
// for the next boundary crossing
type Timer struct {
	Instance Peripheral // PERIPHERAL_TIMER0, 1 or 2
	Count    uint16     // Counter value at `Anchor`
	Anchor   uint64     // Date at which `Count` was valid
	Mode     uint16     // Mode register
	Target   uint16     // Counter target

	index int
}

// Returns a new Timer instance
func NewTimer(instance Peripheral) *Timer {
	return &Timer{
		Instance: instance,
		index:    int(instance - PERIPHERAL_TIMER0),
	}
}

// Returns the clock currently feeding the timer
func (timer *Timer) Clock() Clock {
	return ClockSourceLookupTable[timer.index][(timer.Mode>>8)&3]
}

func (timer *Timer) Interrupt() Interrupt {
	return INTERRUPT_TIMER0 + Interrupt(timer.index)
}

// Returns the counter value at `now`. When the derived value no longer fits
// in 16 bits the count and anchor are moved forward together, the result
// does not change
func (timer *Timer) Current(now uint64) uint16 {
	if timer.Mode&TIMER_MODE_STOP != 0 {
		return timer.Count
	}

	div := timer.Clock().Divider()
	ticks := (now - timer.Anchor) / div
	v := uint64(timer.Count) + ticks
	if v > 0xffff {
		timer.Count = uint16(v & 0xffff)
		timer.Anchor += ticks * div
	}
	return uint16(v & 0xffff)
}

// Returns true if the next boundary is the target rather than the 16 bit
// overflow
func (timer *Timer) countsToTarget() bool {
	return timer.Mode&(TIMER_MODE_COUNTTARGET|TIMER_MODE_IRQTARGET) != 0
}

// Schedules the next boundary crossing
func (timer *Timer) predictNextSync(th *TimeHandler) {
	if timer.Mode&TIMER_MODE_STOP != 0 {
		th.RemoveNextSync(timer.Instance)
		return
	}

	boundary := int64(0x10000)
	if timer.countsToTarget() {
		boundary = int64(timer.Target)
	}

	duration := boundary - int64(timer.Current(th.Cycles))
	if duration < 1 {
		duration += 0x10000
	}

	div := timer.Clock().Divider()
	// ticks already counted since the anchor shorten the first one
	phase := (th.Cycles - timer.Anchor) % div
	th.SetNextSyncDelta(timer.Instance, uint64(duration)*div-phase)
}

func (timer *Timer) SetCount(th *TimeHandler, val uint16) {
	timer.Count = val
	timer.Anchor = th.Cycles
	timer.predictNextSync(th)
}

// Sets the mode register. The counter keeps its current value across the
// change unless the reset bit is set
func (timer *Timer) SetMode(th *TimeHandler, val uint16) {
	timer.Count = timer.Current(th.Cycles)
	timer.Anchor = th.Cycles
	if val&TIMER_MODE_RESET != 0 {
		timer.Count = 0
	}
	timer.Mode = val
	timer.predictNextSync(th)
}

func (timer *Timer) SetTarget(th *TimeHandler, val uint16) {
	timer.Target = val
	timer.predictNextSync(th)
}

// Handles a boundary crossing
func (timer *Timer) Sync(th *TimeHandler, irqState *IrqState) {
	target := timer.countsToTarget()
	timer.Count = 0
	timer.Anchor = th.Cycles

	if (target && timer.Mode&TIMER_MODE_IRQTARGET != 0) ||
		(!target && timer.Mode&TIMER_MODE_IRQOVERFLOW != 0) {
		irqState.SetHigh(timer.Interrupt())
	}

	if timer.Mode&TIMER_MODE_REPEAT != 0 {
		timer.predictNextSync(th)
	}
}

type TimerSnapshot struct {
	Count  uint16
	Anchor uint64
	Mode   uint16
	Target uint16
}

func (timer *Timer) Snapshot() TimerSnapshot {
	return TimerSnapshot{
		Count:  timer.Count,
		Anchor: timer.Anchor,
		Mode:   timer.Mode,
		Target: timer.Target,
	}
}

func (timer *Timer) Restore(s TimerSnapshot) {
	timer.Count = s.Count
	timer.Anchor = s.Anchor
	timer.Mode = s.Mode
	timer.Target = s.Target
}

type Timers struct {
	// Timer 0: GPU pixel clock.
	// Timer 1: GPU horizontal blanking.
	// Timer 2: System clock divided by 8
	Timers [3]*Timer

	th       *TimeHandler
	irqState *IrqState
}

func NewTimers(th *TimeHandler, irqState *IrqState) *Timers {
	timers := &Timers{
		Timers: [3]*Timer{
			NewTimer(PERIPHERAL_TIMER0),
			NewTimer(PERIPHERAL_TIMER1),
			NewTimer(PERIPHERAL_TIMER2),
		},
		th:       th,
		irqState: irqState,
	}

	for _, timer := range timers.Timers {
		timer := timer
		th.SetHandler(timer.Instance, func() {
			timer.Sync(th, irqState)
		})
	}
	return timers
}

func (timers *Timers) Load(offset uint32) uint32 {
	instance := offset / 4
	if instance >= uint32(len(timers.Timers)) {
		logUnhandled("timer", "read", offset)
		return 0
	}
	timer := timers.Timers[instance]

	switch offset % 4 {
	case TIMER_REG_COUNT:
		return uint32(timer.Current(timers.th.Cycles))
	case TIMER_REG_MODE:
		return uint32(timer.Mode)
	case TIMER_REG_TARGET:
		return uint32(timer.Target)
	}
	logUnhandled("timer", "read", offset)
	return 0
}

func (timers *Timers) Store(offset, val, lanes uint32) {
	instance := offset / 4
	if instance >= uint32(len(timers.Timers)) {
		logUnhandled("timer", "write", offset)
		return
	}
	timer := timers.Timers[instance]
	th := timers.th

	switch offset % 4 {
	case TIMER_REG_COUNT:
		old := uint32(timer.Current(th.Cycles))
		timer.SetCount(th, uint16(combine(old, val, lanes)))
	case TIMER_REG_MODE:
		timer.SetMode(th, uint16(combine(uint32(timer.Mode), val, lanes)))
	case TIMER_REG_TARGET:
		timer.SetTarget(th, uint16(combine(uint32(timer.Target), val, lanes)))
	default:
		logUnhandled("timer", "write", offset)
	}
}

func (timers *Timers) Reset() {
	for _, timer := range timers.Timers {
		timer.Count = 0
		timer.Anchor = timers.th.Cycles
		timer.Mode = 0
		timer.Target = 0
		timers.th.RemoveNextSync(timer.Instance)
	}
}

func (timers *Timers) Snapshot() [3]TimerSnapshot {
	var s [3]TimerSnapshot
	for i, timer := range timers.Timers {
		s[i] = timer.Snapshot()
	}
	return s
}

func (timers *Timers) Restore(s [3]TimerSnapshot) {
	for i, timer := range timers.Timers {
		timer.Restore(s[i])
	}
}
