package player

import (
	"fmt"

	"github.com/zeozeozeo/psxperiph/emulator"
)

const (
	PAD_MODE    uint32 = 0x000d // 8 bits, 1x prescaler
	PAD_BAUD    uint32 = 0x0088
	PAD_CONTROL        = uint32(emulator.SIO_CONTROL_TX_ENA | emulator.SIO_CONTROL_DTR | emulator.SIO_CONTROL_DSR_IENA)
)

// Reads the buttons of the pad on the controller port through the SIO0
// registers: the 0x01 0x42 poll, one byte at a time, waiting for the
// acknowledge interrupt between bytes. A pressed button reads as 0
func (d *Decoder) PollPad() (uint16, error) {
	inter := d.Inter
	inter.Store(SIO0_MODE, emulator.ACCESS_HALFWORD, PAD_MODE)
	inter.Store(SIO0_BAUD, emulator.ACCESS_HALFWORD, PAD_BAUD)
	inter.Store(SIO0_CONTROL, emulator.ACCESS_HALFWORD, PAD_CONTROL)
	mask := d.load32(IRQ_MASK)
	d.store32(IRQ_MASK, mask|1<<emulator.INTERRUPT_PADMEMCARD)
	defer func() {
		inter.Store(SIO0_CONTROL, emulator.ACCESS_HALFWORD, 0)
		d.store32(IRQ_MASK, mask)
	}()

	var resp [5]uint8
	for i, cmd := range []uint32{0x01, 0x42, 0, 0, 0} {
		inter.Store(SIO0_DATA, emulator.ACCESS_BYTE, cmd)
		received := inter.RunUntil(func() bool {
			return d.load32(SIO0_STATUS)&emulator.SIO_STATUS_RX_RDY != 0
		}, TIMEOUT)
		if !received {
			return 0, fmt.Errorf("%w: byte %d", ErrTimeout, i)
		}
		resp[i] = uint8(inter.Load(SIO0_DATA, emulator.ACCESS_BYTE))

		if i == len(resp)-1 {
			break
		}
		if !inter.RunUntilInterrupt(emulator.INTERRUPT_PADMEMCARD, 2*emulator.GAMEPAD_ACK_DELAY) {
			return 0, fmt.Errorf("%w: no acknowledge after byte %d", ErrNoPad, i)
		}
		inter.Store(SIO0_CONTROL, emulator.ACCESS_HALFWORD, PAD_CONTROL|uint32(emulator.SIO_CONTROL_IACK))
		d.store32(IRQ_STATUS, ^uint32(1<<emulator.INTERRUPT_PADMEMCARD))
	}

	if resp[1] != 0x41 || resp[2] != 0x5a {
		return 0, fmt.Errorf("%w: id 0x%02x 0x%02x", ErrNoPad, resp[1], resp[2])
	}
	return uint16(resp[3]) | uint16(resp[4])<<8, nil
}
