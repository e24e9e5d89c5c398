package emulator

import "testing"

func TestTimeHandlerOrder(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	th := NewTimeHandler()
	var fired []Peripheral
	var dates []uint64
	for p := Peripheral(0); p < PERIPHERAL_COUNT; p++ {
		p := p
		th.SetHandler(p, func() {
			fired = append(fired, p)
			dates = append(dates, th.Cycles)
		})
	}

	th.SetNextSyncDelta(PERIPHERAL_SIO0, 30)
	th.SetNextSyncDelta(PERIPHERAL_TIMER1, 10)
	th.SetNextSyncDelta(PERIPHERAL_DMA2, 30)
	th.SetNextSyncDelta(PERIPHERAL_PAD, 50)

	date, from, ok := th.NextEvent()
	assert(ok && date == 10 && from == PERIPHERAL_TIMER1)

	th.Tick(40)
	assert(th.Cycles == 40)
	assert(len(fired) == 3)
	assert(fired[0] == PERIPHERAL_TIMER1 && dates[0] == 10)
	// ties are broken by peripheral index
	assert(fired[1] == PERIPHERAL_DMA2 && dates[1] == 30)
	assert(fired[2] == PERIPHERAL_SIO0 && dates[2] == 30)
	assert(th.Scheduled(PERIPHERAL_PAD))
	assert(!th.NeedsSync(PERIPHERAL_PAD))

	th.RemoveNextSync(PERIPHERAL_PAD)
	th.Tick(100)
	assert(len(fired) == 3)
	_, _, ok = th.NextEvent()
	assert(!ok)
}

func TestTimeHandlerReschedule(t *testing.T) {
	th := NewTimeHandler()
	count := 0
	th.SetHandler(PERIPHERAL_TIMER0, func() {
		count++
		th.SetNextSyncDelta(PERIPHERAL_TIMER0, 7)
	})
	th.SetNextSyncDelta(PERIPHERAL_TIMER0, 7)

	th.RunUntil(70)
	if count != 10 {
		t.Errorf("expected %d, got %d", 10, count)
	}
	if date, _, _ := th.NextEvent(); date != 77 {
		t.Errorf("expected %d, got %d", 77, date)
	}

	s := th.Snapshot()
	other := NewTimeHandler()
	other.Restore(s)
	if !other.Scheduled(PERIPHERAL_TIMER0) || other.Cycles != 70 {
		t.Error("assert failed")
	}
}
