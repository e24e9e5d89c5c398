package emulator

import "github.com/zeozeozeo/psxperiph/logger"

// Status register bits
const (
	SIO_STATUS_TX_RDY   uint32 = 1 << 0 // Transmit holding register is free
	SIO_STATUS_RX_RDY   uint32 = 1 << 1 // A received byte is waiting
	SIO_STATUS_TX_EMPTY uint32 = 1 << 2 // Nothing left to transmit
	SIO_STATUS_OVERRUN  uint32 = 1 << 4 // A byte was received before the previous one was read
	SIO_STATUS_DSR      uint32 = 1 << 7 // Data Set Ready input level
	SIO_STATUS_IRQ      uint32 = 1 << 9 // Interrupt latched, cleared by IACK
)

// Control register bits
const (
	SIO_CONTROL_TX_ENA   uint16 = 1 << 0
	SIO_CONTROL_DTR      uint16 = 1 << 1
	SIO_CONTROL_IACK     uint16 = 1 << 4
	SIO_CONTROL_RESET    uint16 = 1 << 6
	SIO_CONTROL_TX_IENA  uint16 = 1 << 10
	SIO_CONTROL_RX_IENA  uint16 = 1 << 11
	SIO_CONTROL_DSR_IENA uint16 = 1 << 12
)

// Lines driven by the port
const (
	SIO_OUT_DATA  uint8 = 1 << 0
	SIO_OUT_DTR   uint8 = 1 << 1
	SIO_OUT_RTS   uint8 = 1 << 2
	SIO_OUT_CLOCK uint8 = 1 << 3
)

// Lines driven by the device on the other side
const (
	SIO_IN_DATA uint8 = 1 << 0
	SIO_IN_DSR  uint8 = 1 << 1
	SIO_IN_CTS  uint8 = 1 << 2
)

// Register offsets (in words) of a port
const (
	SIO_REG_DATA         uint32 = 0
	SIO_REG_STATUS       uint32 = 1
	SIO_REG_MODE_CONTROL uint32 = 2 // Mode in the low half, control in the high half
	SIO_REG_BAUD         uint32 = 3 // Baud divisor in the high half
)

// Receives the output lines of a port every time they are published
type SioLineHandler func(lines uint8)

// Serial port. SIO0 talks to the controllers and memory cards, SIO1 is the
// serial link port. Bits are clocked by an event on the time handler, one
// event per bit
type SioPort struct {
	Index    int    // 0 or 1
	Status   uint32 // Status register
	Mode     uint16 // Mode register (prescaler in bits [1:0])
	Control  uint16 // Control register
	Baud     uint16 // Baud rate divisor
	TxData   uint8  // Byte waiting to be transmitted
	TxShift  uint8  // Transmit shift register
	TxBits   uint8  // Bits left in `TxShift`
	RxData   uint8  // Last received byte
	RxShift  uint8  // Receive shift register
	RxBits   uint8  // Bits left to receive
	OutLines uint8  // State of the output lines
	InLines  uint8  // State of the input lines

	Handler SioLineHandler // Other end of the output lines, may be nil

	peripheral Peripheral
	interrupt  Interrupt
	th         *TimeHandler
	irqState   *IrqState
}

// Returns a new reset port. Port 0 interrupts on the pad/memory card line,
// port 1 on the serial line
func NewSioPort(index int, th *TimeHandler, irqState *IrqState) *SioPort {
	sio := &SioPort{
		Index:      index,
		peripheral: PERIPHERAL_SIO0,
		interrupt:  INTERRUPT_PADMEMCARD,
		th:         th,
		irqState:   irqState,
	}
	if index == 1 {
		sio.peripheral = PERIPHERAL_SIO1
		sio.interrupt = INTERRUPT_SIO
	}
	sio.Reset()

	th.SetHandler(sio.peripheral, sio.Sync)
	return sio
}

func (sio *SioPort) Reset() {
	sio.Status = SIO_STATUS_TX_EMPTY | SIO_STATUS_TX_RDY
	sio.Mode = 0
	sio.Control = 0
	sio.Baud = 0
	sio.TxData = 0
	sio.TxShift = 0
	sio.TxBits = 0
	sio.RxData = 0xff
	sio.RxShift = 0
	sio.RxBits = 0
	// idle lines are high
	sio.OutLines = SIO_OUT_DATA | SIO_OUT_CLOCK
	sio.InLines = SIO_IN_DATA
	sio.th.RemoveNextSync(sio.peripheral)
}

// Number of cycles per bit, 0 if the mode or the divisor is invalid
func (sio *SioPort) Period() uint64 {
	var prescaler uint64
	switch sio.Mode & 3 {
	case 1:
		prescaler = 1
	case 2:
		prescaler = 16
	case 3:
		prescaler = 64
	default:
		return 0
	}
	return prescaler * uint64(sio.Baud)
}

// Keeps the bit clock running while there's something to shift
func (sio *SioPort) scheduleTick() {
	if sio.Status&SIO_STATUS_TX_EMPTY != 0 && sio.TxBits == 0 {
		sio.th.RemoveNextSync(sio.peripheral)
		return
	}

	period := sio.Period()
	if period == 0 {
		logger.Logf(logger.Allow, "sio", "port %d: invalid baud rate (mode 0x%04x, divisor %d)", sio.Index, sio.Mode, sio.Baud)
		sio.th.RemoveNextSync(sio.peripheral)
		return
	}
	sio.th.SetNextSyncDelta(sio.peripheral, period)
}

// Bit clock tick
func (sio *SioPort) Sync() {
	if sio.TxBits == 0 && sio.Control&SIO_CONTROL_TX_ENA != 0 && sio.Status&SIO_STATUS_TX_EMPTY == 0 {
		sio.TxShift = sio.TxData
		sio.TxBits = 8
		if sio.Index == 0 {
			// the controller port receives while it transmits
			sio.RxBits = 8
			sio.RxShift = 0
		}
		sio.Status |= SIO_STATUS_TX_EMPTY | SIO_STATUS_TX_RDY
	}

	if sio.TxBits != 0 {
		bit := sio.TxShift & 1
		sio.TxShift >>= 1
		sio.TxBits--

		// data changes on the falling edge, the device samples it on the
		// rising one
		sio.OutLines = (sio.OutLines &^ (SIO_OUT_DATA | SIO_OUT_CLOCK)) | bit
		sio.publish()
		sio.OutLines |= SIO_OUT_CLOCK
		sio.publish()

		if sio.TxBits == 0 && sio.Control&SIO_CONTROL_TX_IENA != 0 {
			sio.raise()
		}
	}

	if sio.RxBits != 0 {
		rxd := sio.InLines & SIO_IN_DATA
		sio.RxShift = (sio.RxShift >> 1) | (rxd << 7)
		sio.RxBits--

		if sio.RxBits == 0 {
			if sio.Status&SIO_STATUS_RX_RDY != 0 {
				sio.Status |= SIO_STATUS_OVERRUN
			} else {
				sio.RxData = sio.RxShift
				sio.Status |= SIO_STATUS_RX_RDY
			}
			if sio.Control&SIO_CONTROL_RX_IENA != 0 {
				sio.raise()
			}
		}
	}

	sio.scheduleTick()
}

func (sio *SioPort) raise() {
	sio.Status |= SIO_STATUS_IRQ
	sio.irqState.SetHigh(sio.interrupt)
}

func (sio *SioPort) publish() {
	if sio.Handler != nil {
		sio.Handler(sio.OutLines)
	}
}

// Called by the device on the other side of the port to drive the input
// lines selected by `mask`
func (sio *SioPort) InputLine(mask, value uint8) {
	old := sio.InLines
	sio.InLines = (sio.InLines &^ mask) | (value & mask)

	rising := sio.InLines &^ old
	if rising&SIO_IN_DSR != 0 && sio.Control&SIO_CONTROL_DSR_IENA != 0 {
		sio.raise()
	}

	if sio.InLines&SIO_IN_DSR != 0 {
		sio.Status |= SIO_STATUS_DSR
	} else {
		sio.Status &^= SIO_STATUS_DSR
	}
}

// Queues a byte for transmission
func (sio *SioPort) WriteData(val uint8) {
	sio.TxData = val
	sio.Status &^= SIO_STATUS_TX_RDY | SIO_STATUS_TX_EMPTY
	sio.scheduleTick()
}

// Returns the last received byte and frees the receive buffer
func (sio *SioPort) ReadData() uint8 {
	data := sio.RxData
	sio.Status &^= SIO_STATUS_RX_RDY
	sio.RxData = 0xff
	return data
}

func (sio *SioPort) SetControl(val uint16) {
	sio.Control = val

	if val&SIO_CONTROL_RESET != 0 {
		sio.Status &^= SIO_STATUS_RX_RDY | SIO_STATUS_OVERRUN | SIO_STATUS_IRQ
		sio.Status |= SIO_STATUS_TX_EMPTY | SIO_STATUS_TX_RDY
		sio.TxBits = 0
		sio.RxBits = 0
		sio.Control &^= SIO_CONTROL_RESET
		sio.th.RemoveNextSync(sio.peripheral)
	}
	if val&SIO_CONTROL_IACK != 0 {
		sio.Status &^= SIO_STATUS_IRQ
		sio.Control &^= SIO_CONTROL_IACK
	}

	lines := sio.OutLines &^ SIO_OUT_DTR
	if val&SIO_CONTROL_DTR != 0 {
		lines |= SIO_OUT_DTR
	}
	if lines != sio.OutLines {
		sio.OutLines = lines
		sio.publish()
	}
}

func (sio *SioPort) Load(offset uint32) uint32 {
	switch offset {
	case SIO_REG_DATA:
		return uint32(sio.ReadData())
	case SIO_REG_STATUS:
		return sio.Status
	case SIO_REG_MODE_CONTROL:
		return uint32(sio.Mode) | uint32(sio.Control)<<16
	case SIO_REG_BAUD:
		return uint32(sio.Baud) << 16
	}
	logUnhandled("sio", "read", offset)
	return 0
}

func (sio *SioPort) Store(offset, val, lanes uint32) {
	switch offset {
	case SIO_REG_DATA:
		if lanes&0xff != 0 {
			sio.WriteData(uint8(val))
		}
	case SIO_REG_STATUS:
		// read only
	case SIO_REG_MODE_CONTROL:
		if lanes&0xffff != 0 {
			sio.Mode = uint16(combine(uint32(sio.Mode), val, lanes))
		}
		if lanes&0xffff0000 != 0 {
			sio.SetControl(uint16(combine(uint32(sio.Control)<<16, val, lanes) >> 16))
		}
	case SIO_REG_BAUD:
		if lanes&0xffff0000 != 0 {
			sio.Baud = uint16(combine(uint32(sio.Baud)<<16, val, lanes) >> 16)
		}
	default:
		logUnhandled("sio", "write", offset)
	}
}

type SioSnapshot struct {
	Status   uint32
	Mode     uint16
	Control  uint16
	Baud     uint16
	TxData   uint8
	TxShift  uint8
	TxBits   uint8
	RxData   uint8
	RxShift  uint8
	RxBits   uint8
	OutLines uint8
	InLines  uint8
}

func (sio *SioPort) Snapshot() SioSnapshot {
	return SioSnapshot{
		Status:   sio.Status,
		Mode:     sio.Mode,
		Control:  sio.Control,
		Baud:     sio.Baud,
		TxData:   sio.TxData,
		TxShift:  sio.TxShift,
		TxBits:   sio.TxBits,
		RxData:   sio.RxData,
		RxShift:  sio.RxShift,
		RxBits:   sio.RxBits,
		OutLines: sio.OutLines,
		InLines:  sio.InLines,
	}
}

func (sio *SioPort) Restore(s SioSnapshot) {
	sio.Status = s.Status
	sio.Mode = s.Mode
	sio.Control = s.Control
	sio.Baud = s.Baud
	sio.TxData = s.TxData
	sio.TxShift = s.TxShift
	sio.TxBits = s.TxBits
	sio.RxData = s.RxData
	sio.RxShift = s.RxShift
	sio.RxBits = s.RxBits
	sio.OutLines = s.OutLines
	sio.InLines = s.InLines
}
