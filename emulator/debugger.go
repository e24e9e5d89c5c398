package emulator

import "github.com/zeozeozeo/psxperiph/logger"

// Register watchpoints. Hits are written to the log, the access itself is
// not affected
type Debugger struct {
	ReadWatchpoints  []uint32 // All read watchpoints
	WriteWatchpoints []uint32 // All write watchpoints
	Hits             int      // Number of watchpoint hits so far
}

func NewDebugger() *Debugger {
	return &Debugger{}
}

// Adds a memory read watchpoint for `addr`
func (debugger *Debugger) AddReadWatchpoint(addr uint32) {
	addr = maskRegion(addr)
	for _, watchpoint := range debugger.ReadWatchpoints {
		if watchpoint == addr {
			return
		}
	}
	debugger.ReadWatchpoints = append(debugger.ReadWatchpoints, addr)
}

// Adds a memory write watchpoint for `addr`
func (debugger *Debugger) AddWriteWatchpoint(addr uint32) {
	addr = maskRegion(addr)
	for _, watchpoint := range debugger.WriteWatchpoints {
		if watchpoint == addr {
			return
		}
	}
	debugger.WriteWatchpoints = append(debugger.WriteWatchpoints, addr)
}

// Deletes a memory read watchpoint at `addr`. Does nothing if it doesn't exist
func (debugger *Debugger) DeleteReadWatchpoint(addr uint32) {
	addr = maskRegion(addr)
	for idx, watchpoint := range debugger.ReadWatchpoints {
		if watchpoint == addr {
			debugger.ReadWatchpoints = append(
				debugger.ReadWatchpoints[:idx],
				debugger.ReadWatchpoints[idx+1:]...,
			)
			return
		}
	}
}

// Deletes a memory write watchpoint at `addr`. Does nothing if it doesn't exist
func (debugger *Debugger) DeleteWriteWatchpoint(addr uint32) {
	addr = maskRegion(addr)
	for idx, watchpoint := range debugger.WriteWatchpoints {
		if watchpoint == addr {
			debugger.WriteWatchpoints = append(
				debugger.WriteWatchpoints[:idx],
				debugger.WriteWatchpoints[idx+1:]...,
			)
			return
		}
	}
}

// Called by the interconnect after a register read. `addr` has its region
// bits stripped, watchpoints match the word containing it
func (debugger *Debugger) memoryRead(addr, val uint32) {
	for _, watchpoint := range debugger.ReadWatchpoints {
		if watchpoint&^3 == addr&^3 {
			debugger.Hits++
			logger.Logf(logger.Allow, "debugger", "read watchpoint 0x%08x -> 0x%08x", addr, val)
			return
		}
	}
}

// Called by the interconnect before a register write
func (debugger *Debugger) memoryWrite(addr, val uint32) {
	for _, watchpoint := range debugger.WriteWatchpoints {
		if watchpoint&^3 == addr&^3 {
			debugger.Hits++
			logger.Logf(logger.Allow, "debugger", "write watchpoint 0x%08x <- 0x%08x", addr, val)
			return
		}
	}
}
