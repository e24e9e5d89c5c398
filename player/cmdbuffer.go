package player

// Buffer holding multi-word fixed-length GP0 command parameters
type CommandBuffer struct {
	// The longest commands handled here, GP0(0xA0) and GP0(0xC0), take
	// 3 words
	Buffer [3]uint32
	Len    uint8 // Number of words queued in the buffer
}

// Clears the command buffer
func (cmdbuf *CommandBuffer) Clear() {
	cmdbuf.Len = 0
}

// Pushes a word (32 bit unsigned integer) into the command buffer
func (cmdbuf *CommandBuffer) PushWord(word uint32) {
	cmdbuf.Buffer[cmdbuf.Len] = word
	cmdbuf.Len++
}

// Returns value at `index`
func (cmdbuf *CommandBuffer) Get(index uint8) uint32 {
	return cmdbuf.Buffer[index]
}
