package sim

import "sync"

// InputCommand is one player's input bitmask captured from the unreliable
// channel, staged for application on the next tick.
type InputCommand struct {
	PlayerID uint8
	Flags    uint8
}

// InputBuffer stores staged input commands in a fixed-size ring. It is safe
// for concurrent producers and a single consumer.
type InputBuffer struct {
	mu    sync.Mutex
	data  []InputCommand
	head  int
	tail  int
	count int

	onOverflow func()
}

// NewInputBuffer constructs a ring buffer with the provided capacity.
// onOverflow, when non-nil, is invoked for each command dropped because the
// ring is full.
func NewInputBuffer(capacity int, onOverflow func()) *InputBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &InputBuffer{
		data:       make([]InputCommand, capacity),
		onOverflow: onOverflow,
	}
}

// Capacity reports the maximum number of commands the buffer can hold.
func (b *InputBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Push stages a command, returning false if the buffer is full.
func (b *InputBuffer) Push(cmd InputCommand) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return false
	}
	b.data[b.tail] = cmd
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	return true
}

// Drain returns all staged commands in FIFO order and clears the buffer.
func (b *InputBuffer) Drain() []InputCommand {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]InputCommand, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
	}
	b.head = 0
	b.tail = 0
	b.count = 0
	return commands
}

// Len reports the number of staged commands.
func (b *InputBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
