package emulator

import "testing"

func timerReg(instance int, reg uint32) uint32 {
	return uint32(instance)*4 + reg
}

func TestTimerCount(t *testing.T) {
	th := NewTimeHandler()
	timers := NewTimers(th, NewIrqState(nil))

	timers.Store(timerReg(1, TIMER_REG_COUNT), 0x1234, 0x0000ffff)
	if got := timers.Load(timerReg(1, TIMER_REG_COUNT)); got != 0x1234 {
		t.Errorf("expected 0x%x, got 0x%x", 0x1234, got)
	}

	th.Tick(10)
	if got := timers.Load(timerReg(1, TIMER_REG_COUNT)); got != 0x123e {
		t.Errorf("expected 0x%x, got 0x%x", 0x123e, got)
	}

	// the other counters were left alone
	if got := timers.Load(timerReg(0, TIMER_REG_COUNT)); got != 10 {
		t.Errorf("expected 0x%x, got 0x%x", 10, got)
	}
}

func TestTimerTargetRepeat(t *testing.T) {
	th := NewTimeHandler()
	irqState := NewIrqState(nil)
	irqState.SetMask(0xffff)
	timers := NewTimers(th, irqState)

	timers.Store(timerReg(0, TIMER_REG_TARGET), 100, 0xffffffff)
	mode := TIMER_MODE_COUNTTARGET | TIMER_MODE_IRQTARGET | TIMER_MODE_REPEAT
	timers.Store(timerReg(0, TIMER_REG_MODE), uint32(mode), 0xffffffff)

	for _, date := range []uint64{100, 200, 300} {
		th.RunUntil(date - 1)
		if irqState.Pending(INTERRUPT_TIMER0) {
			t.Errorf("interrupt before %d", date)
		}
		th.RunUntil(date)
		if !irqState.Pending(INTERRUPT_TIMER0) {
			t.Errorf("no interrupt at %d", date)
		}
		irqState.Acknowledge(0, 0xffffffff)
	}

	th.RunUntil(350)
	if got := timers.Load(timerReg(0, TIMER_REG_COUNT)); got != 50 {
		t.Errorf("expected %d, got %d", 50, got)
	}
}

func TestTimerOneShot(t *testing.T) {
	th := NewTimeHandler()
	irqState := NewIrqState(nil)
	irqState.SetMask(0xffff)
	timers := NewTimers(th, irqState)

	timers.Store(timerReg(2, TIMER_REG_TARGET), 10, 0xffffffff)
	timers.Store(timerReg(2, TIMER_REG_MODE), uint32(TIMER_MODE_IRQTARGET), 0xffffffff)

	th.Tick(10)
	if !irqState.Pending(INTERRUPT_TIMER2) {
		t.Error("no interrupt at the target")
	}
	irqState.Acknowledge(0, 0xffffffff)
	th.Tick(1000)
	if irqState.Pending(INTERRUPT_TIMER2) {
		t.Error("interrupt without the repeat bit")
	}
	if th.Scheduled(PERIPHERAL_TIMER2) {
		t.Error("event scheduled without the repeat bit")
	}
}

func TestTimerOverflow(t *testing.T) {
	th := NewTimeHandler()
	irqState := NewIrqState(nil)
	irqState.SetMask(0xffff)
	timers := NewTimers(th, irqState)

	timers.Store(timerReg(1, TIMER_REG_MODE), uint32(TIMER_MODE_IRQOVERFLOW|TIMER_MODE_REPEAT), 0xffffffff)
	timers.Store(timerReg(1, TIMER_REG_COUNT), 0xfff0, 0xffffffff)

	th.Tick(15)
	if irqState.Pending(INTERRUPT_TIMER1) {
		t.Error("interrupt before the overflow")
	}
	th.Tick(1)
	if !irqState.Pending(INTERRUPT_TIMER1) {
		t.Error("no interrupt at the overflow")
	}
	if got := timers.Load(timerReg(1, TIMER_REG_COUNT)); got != 0 {
		t.Errorf("expected 0x%x, got 0x%x", 0, got)
	}
}

func TestTimerCurrentRefresh(t *testing.T) {
	timer := NewTimer(PERIPHERAL_TIMER0)
	timer.Count = 0xfff0

	if got := timer.Current(0x20); got != 0x10 {
		t.Errorf("expected 0x%x, got 0x%x", 0x10, got)
	}
	if timer.Count != 0x10 || timer.Anchor != 0x20 {
		t.Errorf("expected anchor to move, got count 0x%x at %d", timer.Count, timer.Anchor)
	}
	if got := timer.Current(0x30); got != 0x20 {
		t.Errorf("expected 0x%x, got 0x%x", 0x20, got)
	}
}

func TestTimerClockSources(t *testing.T) {
	th := NewTimeHandler()
	timers := NewTimers(th, NewIrqState(nil))

	timers.Store(timerReg(0, TIMER_REG_MODE), uint32(TIMER_MODE_CLC), 0xffffffff)
	timers.Store(timerReg(1, TIMER_REG_MODE), uint32(TIMER_MODE_CLC), 0xffffffff)
	timers.Store(timerReg(2, TIMER_REG_MODE), uint32(TIMER_MODE_DIV), 0xffffffff)

	th.Tick(2150 * 3)
	expected := []uint32{2150 * 3 / 5, 3, 2150 * 3 / 8}
	for i, want := range expected {
		if got := timers.Load(timerReg(i, TIMER_REG_COUNT)); got != want {
			t.Errorf("timer %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestTimerStop(t *testing.T) {
	th := NewTimeHandler()
	timers := NewTimers(th, NewIrqState(nil))

	timers.Store(timerReg(0, TIMER_REG_COUNT), 42, 0xffffffff)
	timers.Store(timerReg(0, TIMER_REG_MODE), uint32(TIMER_MODE_STOP), 0xffffffff)
	th.Tick(1000)
	if got := timers.Load(timerReg(0, TIMER_REG_COUNT)); got != 42 {
		t.Errorf("expected %d, got %d", 42, got)
	}
	if th.Scheduled(PERIPHERAL_TIMER0) {
		t.Error("stopped timer has an event")
	}

	timers.Store(timerReg(0, TIMER_REG_MODE), uint32(TIMER_MODE_RESET), 0xffffffff)
	th.Tick(5)
	if got := timers.Load(timerReg(0, TIMER_REG_COUNT)); got != 5 {
		t.Errorf("expected %d, got %d", 5, got)
	}
}
