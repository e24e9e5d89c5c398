package logger

import (
	"io"
	"strings"
)

const (
	dimPen    = "\033[2m"
	normalPen = "\033[0m"
)

// Colorizer dims the tag of each log line. Only useful when the output is a
// terminal
type Colorizer struct {
	out io.Writer
}

// NewColorizer is the preferred method of initialisation for the Colorizer
// type
func NewColorizer(out io.Writer) Colorizer {
	return Colorizer{out: out}
}

// Write implements the io.Writer interface
func (c Colorizer) Write(p []byte) (int, error) {
	s := string(p)
	tag, rest, ok := strings.Cut(s, ": ")
	if !ok {
		return c.out.Write(p)
	}

	if _, err := io.WriteString(c.out, dimPen+tag+":"+normalPen+" "+rest); err != nil {
		return 0, err
	}
	return len(p), nil
}
