package stdio

import "github.com/luhtfiimanal/go-serial-stdio/event"

// Kernel creates the synchronization objects and threads a Channel runs on.
// Either call may fail when the system is out of resources.
type Kernel interface {
	NewEventFlags(flags event.Flags) (*event.Group, error)
	NewThread(name string, entry func()) error
}

// RuntimeKernel backs Kernel with the Go runtime: event groups are plain
// allocations and threads are goroutines.
type RuntimeKernel struct{}

// NewEventFlags returns a group declaring flags. It never fails.
func (RuntimeKernel) NewEventFlags(flags event.Flags) (*event.Group, error) {
	return event.NewGroup(flags), nil
}

// NewThread runs entry in a new goroutine.
func (RuntimeKernel) NewThread(name string, entry func()) error {
	go entry()
	return nil
}
