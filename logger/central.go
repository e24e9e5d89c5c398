// Package logger is the central diagnostic log. Peripherals report
// unsupported configurations and recovered error conditions here instead of
// failing, the emulated software only ever sees status bits.
package logger

import (
	"io"
	"strings"
)

// only one central log for the entire application
var central *logger

// maximum number of entries in the central logger
const maxCentral = 256

func init() {
	central = newLogger(maxCentral)
}

// Log adds an entry to the central logger
func Log(perm Permission, tag, detail string) {
	if perm == Allow || perm.AllowLogging() {
		central.log(tag, detail)
	}
}

// Logf adds a formatted entry to the central logger
func Logf(perm Permission, tag, detail string, args ...interface{}) {
	if perm == Allow || perm.AllowLogging() {
		central.logf(tag, detail, args...)
	}
}

// Clear all entries from central logger
func Clear() {
	central.clear()
}

// Write contents of central logger to io.Writer. Returns false if there was
// nothing to write
func Write(output io.Writer) bool {
	return central.write(output)
}

// Tail writes the last N entries to io.Writer
func Tail(output io.Writer, number int) {
	central.tail(output, number)
}

// SetEcho prints new log entries to io.Writer as they are made. A nil
// writer turns echoing off
func SetEcho(output io.Writer) {
	central.setEcho(output)
}

// BorrowLog gives the provided function the critical section and access to
// the list of log entries. The slice must not be retained
func BorrowLog(f func([]Entry)) {
	central.borrowLog(f)
}

// Contains returns true if an entry with the tag has a detail containing
// the substring
func Contains(tag, substr string) bool {
	found := false
	central.borrowLog(func(entries []Entry) {
		for _, e := range entries {
			if e.Tag == tag && strings.Contains(e.Detail, substr) {
				found = true
				return
			}
		}
	})
	return found
}
