package emulator

import "testing"

type padHarness struct {
	t        *testing.T
	th       *TimeHandler
	irqState *IrqState
	sio      *SioPort
	pad      *Gamepad
}

func newPadHarness(t *testing.T) *padHarness {
	th := NewTimeHandler()
	irqState := NewIrqState(nil)
	irqState.SetMask(1 << INTERRUPT_PADMEMCARD)
	sio := NewSioPort(0, th, irqState)
	pad := NewGamepad(GAMEPAD_TYPE_DIGITAL)
	pad.Connect(sio, th)

	sio.Store(SIO_REG_BAUD, 0x88<<16, 0xffff0000)
	control := SIO_CONTROL_TX_ENA | SIO_CONTROL_DTR | SIO_CONTROL_DSR_IENA
	sio.Store(SIO_REG_MODE_CONTROL, 0x000d|uint32(control)<<16, 0xffffffff)
	return &padHarness{t, th, irqState, sio, pad}
}

// Sends one byte and returns the reply and whether the pad acknowledged it
func (h *padHarness) exchange(cmd uint8) (uint8, bool) {
	h.sio.WriteData(cmd)
	h.th.Tick(8 * h.sio.Period())
	if h.sio.Status&SIO_STATUS_RX_RDY == 0 {
		h.t.Fatal("no byte received")
	}
	reply := h.sio.ReadData()

	h.th.Tick(GAMEPAD_ACK_DELAY)
	ack := h.irqState.Pending(INTERRUPT_PADMEMCARD)
	if ack && h.sio.Status&SIO_STATUS_DSR == 0 {
		h.t.Error("acknowledge without DSR")
	}
	h.th.Tick(GAMEPAD_ACK_DURATION)
	if h.sio.Status&SIO_STATUS_DSR != 0 {
		h.t.Error("DSR still asserted")
	}

	h.sio.SetControl(h.sio.Control | SIO_CONTROL_IACK)
	h.irqState.Acknowledge(0, 0xffffffff)
	return reply, ack
}

func TestGamepadPoll(t *testing.T) {
	h := newPadHarness(t)
	h.pad.SetButtonState(BUTTON_CROSS, BUTTON_STATE_PRESSED)
	h.pad.SetButtonState(BUTTON_START, BUTTON_STATE_PRESSED)

	expected := []struct {
		cmd   uint8
		reply uint8
		ack   bool
	}{
		{0x01, 0xff, true},
		{0x42, 0x41, true},
		{0x00, 0x5a, true},
		{0x00, 0xf7, true},
		{0x00, 0xbf, false},
	}
	for i, e := range expected {
		reply, ack := h.exchange(e.cmd)
		if reply != e.reply {
			t.Errorf("byte %d: expected 0x%x, got 0x%x", i, e.reply, reply)
		}
		if ack != e.ack {
			t.Errorf("byte %d: expected ack %v, got %v", i, e.ack, ack)
		}
	}

	h.sio.SetControl(SIO_CONTROL_TX_ENA)
	if h.pad.Bus.IsBusy() {
		t.Error("pad still selected without DTR")
	}
}

func TestGamepadWrongAddress(t *testing.T) {
	h := newPadHarness(t)

	// memory card address, the pad stays silent
	reply, ack := h.exchange(0x81)
	if reply != 0xff || ack {
		t.Errorf("expected no answer, got 0x%x (ack %v)", reply, ack)
	}
	reply, ack = h.exchange(0x42)
	if reply != 0xff || ack {
		t.Errorf("expected no answer, got 0x%x (ack %v)", reply, ack)
	}
}

func TestGamepadSnapshot(t *testing.T) {
	h := newPadHarness(t)
	h.pad.SetButtonState(BUTTON_TRIANGLE, BUTTON_STATE_PRESSED)
	h.exchange(0x01)

	s := h.pad.Snapshot()
	other := NewGamepad(GAMEPAD_TYPE_DIGITAL)
	other.Restore(s)
	if other.Seq != 1 || !other.Active || other.Profile.Buttons() != 0xefff {
		t.Errorf("unexpected restored state %+v", other.Snapshot())
	}
}
