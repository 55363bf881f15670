package sandbox

import "errors"

var (
	// ErrConfiguration reports a module that cannot be hosted: failed
	// compilation or instantiation, missing exports, or a Host used before
	// Prepare.
	ErrConfiguration = errors.New("sandbox: configuration error")
	// ErrResourceExhausted reports a block whose layout does not fit the
	// module memory.
	ErrResourceExhausted = errors.New("sandbox: memory region exhausted")
	// ErrTrap reports a module call that trapped.
	ErrTrap = errors.New("sandbox: module trapped")
)
