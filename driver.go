package spinor

import "time"

// Driver is the set of operations a chip family implements. Drivers are
// immutable values shared by every Chip that selects them. Family drivers
// embed [Generic] and override what differs; Generic dispatches its
// sub-operations through c.Driver so overrides take effect.
type Driver interface {
	Name() string
	Capabilities() Capabilities

	// Probe reads the identifier and compares it to id. A mismatch is not
	// an error; only transport failures are returned.
	Probe(c *Chip, id uint32) error
	Reset(c *Chip) error
	DetectSize(c *Chip) (uint32, error)

	EraseChip(c *Chip) error
	EraseSector(c *Chip, addr uint32) error
	EraseBlock(c *Chip, addr uint32) error

	Read(c *Chip, buf []byte, addr uint32) error
	// PageProgram programs buf in a single transfer. buf must fit the
	// host's MaxWriteBytes and must not cross a page boundary.
	PageProgram(c *Chip, buf []byte, addr uint32) error
	Write(c *Chip, buf []byte, addr uint32) error
	WriteEncrypted(c *Chip, buf []byte, addr uint32) error

	WriteEnable(c *Chip, protect bool) error
	WaitIdle(c *Chip, timeout time.Duration) error
	SetReadMode(c *Chip) error
}

// Capabilities is the static description of a driver.
type Capabilities struct {
	ReadModes     []ReadMode
	PageSize      int
	MaxProgramLen int
	EraseSizes    []int // supported erase granularities, smallest first
	ChipErase     bool
	Timing        Timing
}

// SupportsReadMode reports whether m is one of the supported read modes.
func (c Capabilities) SupportsReadMode(m ReadMode) bool {
	for _, r := range c.ReadModes {
		if r == m {
			return true
		}
	}
	return false
}
