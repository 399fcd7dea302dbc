package spinor

import "errors"

var (
	// ErrTimeout is returned when a bounded wait exceeds its budget, whether
	// the host or the chip was busy.
	ErrTimeout = errors.New("spinor: timeout")

	// ErrUnsupportedChip is returned when the identifier read back does not
	// match the expected pattern.
	ErrUnsupportedChip = errors.New("spinor: unsupported chip")

	// ErrUnsupportedHost is returned for capabilities that have no
	// implementation on this driver and host pairing.
	ErrUnsupportedHost = errors.New("spinor: unsupported host")

	// ErrNotInitialized is returned when an operation needs configuration
	// state (host, read mode, size) that was never established.
	ErrNotInitialized = errors.New("spinor: chip not initialized")

	// ErrWriteEnableFailed is returned when the write enable latch does not
	// reflect the requested protection state.
	ErrWriteEnableFailed = errors.New("spinor: write enable latch mismatch")

	// ErrNoResponse is returned when a status register write is not
	// reflected when read back.
	ErrNoResponse = errors.New("spinor: no response")

	// ErrOutOfRange is returned when an access exceeds the detected size.
	ErrOutOfRange = errors.New("spinor: address out of range")
)
