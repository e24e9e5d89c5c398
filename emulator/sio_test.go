package emulator

import (
	"testing"

	"github.com/zeozeozeo/psxperiph/logger"
)

func newTestSio(index int, control uint16) (*TimeHandler, *IrqState, *SioPort) {
	th := NewTimeHandler()
	irqState := NewIrqState(nil)
	irqState.SetMask(0xffff)
	sio := NewSioPort(index, th, irqState)
	sio.Store(SIO_REG_BAUD, 0x88<<16, 0xffff0000)
	sio.Store(SIO_REG_MODE_CONTROL, 0x000d|uint32(control)<<16, 0xffffffff)
	return th, irqState, sio
}

func TestSioPeriod(t *testing.T) {
	_, _, sio := newTestSio(1, 0)
	expected := map[uint16]uint64{0: 0, 1: 0x88, 2: 0x88 * 16, 3: 0x88 * 64}
	for mode, want := range expected {
		sio.Mode = mode
		if got := sio.Period(); got != want {
			t.Errorf("mode %d: expected %d, got %d", mode, want, got)
		}
	}
}

func TestSioTransmit(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	th, irqState, sio := newTestSio(1, SIO_CONTROL_TX_ENA|SIO_CONTROL_TX_IENA)
	sio.InputLine(SIO_IN_DSR, SIO_IN_DSR)

	var bits []uint8
	sio.Handler = func(lines uint8) {
		if lines&SIO_OUT_CLOCK != 0 {
			bits = append(bits, lines&SIO_OUT_DATA)
		}
	}

	sio.Store(SIO_REG_DATA, 0xa5, 0x000000ff)
	assert(sio.Load(SIO_REG_STATUS)&(SIO_STATUS_TX_RDY|SIO_STATUS_TX_EMPTY) == 0)

	period := sio.Period()
	interrupts := 0
	for i := 0; i < 8; i++ {
		th.Tick(period)
		if irqState.Pending(INTERRUPT_SIO) {
			interrupts++
			irqState.Acknowledge(0, 0xffffffff)
		}
	}

	status := sio.Load(SIO_REG_STATUS)
	assert(status&SIO_STATUS_TX_RDY != 0)
	assert(status&SIO_STATUS_TX_EMPTY != 0)
	assert(status&SIO_STATUS_IRQ != 0)
	if interrupts != 1 {
		t.Errorf("expected %d, got %d", 1, interrupts)
	}

	expected := []uint8{1, 0, 1, 0, 0, 1, 0, 1}
	if len(bits) != len(expected) {
		t.Fatalf("expected %d bits, got %d", len(expected), len(bits))
	}
	for i := range expected {
		if bits[i] != expected[i] {
			t.Errorf("bit %d: expected %d, got %d", i, expected[i], bits[i])
		}
	}

	// the clock stops once the byte is out
	assert(!th.Scheduled(PERIPHERAL_SIO1))

	sio.Store(SIO_REG_MODE_CONTROL, uint32(SIO_CONTROL_TX_ENA|SIO_CONTROL_IACK)<<16, 0xffff0000)
	assert(sio.Load(SIO_REG_STATUS)&SIO_STATUS_IRQ == 0)
	assert(sio.Control&SIO_CONTROL_IACK == 0)
}

func TestSioReceiveOverrun(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	th, irqState, sio := newTestSio(0, SIO_CONTROL_TX_ENA|SIO_CONTROL_RX_IENA)
	period := sio.Period()

	sio.InputLine(SIO_IN_DATA, 0)
	sio.WriteData(0x01)
	th.Tick(8 * period)
	assert(sio.Status&SIO_STATUS_RX_RDY != 0)
	assert(irqState.Pending(INTERRUPT_PADMEMCARD))

	// the second byte is dropped
	sio.InputLine(SIO_IN_DATA, SIO_IN_DATA)
	sio.WriteData(0x02)
	th.Tick(8 * period)
	assert(sio.Status&SIO_STATUS_OVERRUN != 0)

	if got := sio.Load(SIO_REG_DATA); got != 0x00 {
		t.Errorf("expected 0x%x, got 0x%x", 0x00, got)
	}
	assert(sio.Status&SIO_STATUS_RX_RDY == 0)
	if got := sio.Load(SIO_REG_DATA); got != 0xff {
		t.Errorf("expected 0x%x, got 0x%x", 0xff, got)
	}

	sio.Store(SIO_REG_MODE_CONTROL, uint32(SIO_CONTROL_RESET)<<16, 0xffff0000)
	assert(sio.Status == SIO_STATUS_TX_EMPTY|SIO_STATUS_TX_RDY)
	assert(sio.Control&SIO_CONTROL_RESET == 0)
}

func TestSioDsrEdge(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	_, irqState, sio := newTestSio(0, SIO_CONTROL_DSR_IENA)

	sio.InputLine(SIO_IN_DSR, SIO_IN_DSR)
	assert(sio.Status&SIO_STATUS_DSR != 0)
	assert(sio.Status&SIO_STATUS_IRQ != 0)
	assert(irqState.Pending(INTERRUPT_PADMEMCARD))

	irqState.Acknowledge(0, 0xffffffff)
	sio.InputLine(SIO_IN_DSR, 0)
	assert(sio.Status&SIO_STATUS_DSR == 0)
	assert(!irqState.Pending(INTERRUPT_PADMEMCARD))

	// holding the line high is not an edge
	sio.InputLine(SIO_IN_DSR, SIO_IN_DSR)
	irqState.Acknowledge(0, 0xffffffff)
	sio.InputLine(SIO_IN_DSR|SIO_IN_DATA, SIO_IN_DSR)
	assert(!irqState.Pending(INTERRUPT_PADMEMCARD))
}

func TestSioDtrPublish(t *testing.T) {
	_, _, sio := newTestSio(0, 0)
	var published []uint8
	sio.Handler = func(lines uint8) {
		published = append(published, lines)
	}

	sio.SetControl(SIO_CONTROL_DTR)
	sio.SetControl(SIO_CONTROL_DTR | SIO_CONTROL_TX_ENA)
	sio.SetControl(0)
	if len(published) != 2 {
		t.Fatalf("expected %d, got %d", 2, len(published))
	}
	if published[0]&SIO_OUT_DTR == 0 || published[1]&SIO_OUT_DTR != 0 {
		t.Errorf("unexpected line states %v", published)
	}
}

func TestSioInvalidBaud(t *testing.T) {
	logger.Clear()
	th, _, sio := newTestSio(1, SIO_CONTROL_TX_ENA)
	sio.Store(SIO_REG_MODE_CONTROL, 0, 0x0000ffff)

	sio.WriteData(0x55)
	if th.Scheduled(PERIPHERAL_SIO1) {
		t.Error("bit clock running without a prescaler")
	}
	if !logger.Contains("sio", "invalid baud rate") {
		t.Error("expected a diagnostic")
	}
}
