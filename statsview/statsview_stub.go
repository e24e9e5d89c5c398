//go:build !statsview
// +build !statsview

package statsview

import "io"

// Launch does nothing, the binary was built without the statsview tag
func Launch(output io.Writer) {
}

// Available returns true if a statsview is available to launch.
func Available() bool {
	return false
}
