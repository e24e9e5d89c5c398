package emulator

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc8"
)

const SNAPSHOT_VERSION uint32 = 1

var snapshotMagic = [4]byte{'P', 'S', 'X', 'P'}

var snapshotCRC8 = crc8.MakeTable(crc8.Params{Poly: 0x07, Init: 0x00, RefIn: false, RefOut: false, XorOut: 0x00, Check: 0xF4, Name: "CRC-8"})

var (
	ErrSnapshotVersion  = errors.New("snapshot: unsupported version")
	ErrSnapshotChecksum = errors.New("snapshot: checksum mismatch")
	ErrSnapshotRamSize  = errors.New("snapshot: RAM size mismatch")
)

// Complete state of the peripheral complex, enough to resume emulation
// deterministically. Event handlers are not part of it
type Snapshot struct {
	Time   TimeHandlerSnapshot
	Irq    IrqStateSnapshot
	Dma    DMASnapshot
	Timers [3]TimerSnapshot
	Sio    [2]SioSnapshot
	Pad    *GamepadSnapshot // nil when no pad is plugged in
	Mdec   MDECSnapshot
	Ram    []byte
}

func (inter *Interconnect) Snapshot() *Snapshot {
	s := &Snapshot{
		Time:   inter.Th.Snapshot(),
		Irq:    inter.IrqState.Snapshot(),
		Dma:    inter.Dma.Snapshot(),
		Timers: inter.Timers.Snapshot(),
		Mdec:   inter.Mdec.Snapshot(),
		Ram:    append([]byte(nil), inter.Ram.Data...),
	}
	for i, sio := range inter.Sio {
		s.Sio[i] = sio.Snapshot()
	}
	if inter.Pad != nil {
		pad := inter.Pad.Snapshot()
		s.Pad = &pad
	}
	return s
}

func (inter *Interconnect) Restore(s *Snapshot) error {
	if len(s.Ram) != len(inter.Ram.Data) {
		return fmt.Errorf("%w: %d bytes, expected %d", ErrSnapshotRamSize, len(s.Ram), len(inter.Ram.Data))
	}

	inter.Th.Restore(s.Time)
	inter.IrqState.Restore(s.Irq)
	inter.Dma.Restore(s.Dma)
	inter.Timers.Restore(s.Timers)
	for i, sio := range inter.Sio {
		sio.Restore(s.Sio[i])
	}
	if inter.Pad != nil && s.Pad != nil {
		inter.Pad.Restore(*s.Pad)
	}
	inter.Mdec.Restore(s.Mdec)
	copy(inter.Ram.Data, s.Ram)
	return nil
}

// Writes the snapshot: magic, version, gob payload and a CRC-8 of the
// payload
func (inter *Interconnect) SaveState(w io.Writer) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(inter.Snapshot()); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	var header [8]byte
	copy(header[:4], snapshotMagic[:])
	binary.LittleEndian.PutUint32(header[4:], SNAPSHOT_VERSION)

	csum := crc8.Checksum(payload.Bytes(), snapshotCRC8)
	for _, b := range [][]byte{header[:], payload.Bytes(), {csum}} {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	return nil
}

// Reads a snapshot written by SaveState. Nothing is modified unless the
// whole snapshot is valid
func (inter *Interconnect) LoadState(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if len(data) < 9 || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return fmt.Errorf("%w: not a snapshot", ErrSnapshotVersion)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != SNAPSHOT_VERSION {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, version)
	}

	payload := data[8 : len(data)-1]
	csum := crc8.Init(snapshotCRC8)
	csum = crc8.Update(csum, payload, snapshotCRC8)
	csum = crc8.Complete(csum, snapshotCRC8)
	if csum != data[len(data)-1] {
		return ErrSnapshotChecksum
	}

	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return inter.Restore(&s)
}
