package spinor

import (
	"fmt"
	"io"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
)

// Chip is the handle for one flash chip. It is owned by the caller for the
// whole session; operations on a Chip must not run concurrently.
type Chip struct {
	Host   Host
	Driver Driver // nil selects Generic{}

	// ReadMode and Size must be established, by Init or by hand, before
	// data is read, written or erased.
	ReadMode ReadMode
	Size     uint32 // bytes
	ID       uint32 // JEDEC ID, set by Init

	// QuadEnable overrides the driver's Quad Enable location.
	QuadEnable *QuadEnable

	Log     *zap.Logger // nil disables logging
	Clock   clock.Clock // nil uses the system clock
	Metrics *Metrics    // nil disables metrics
}

func (c *Chip) driver() Driver {
	if c.Driver == nil {
		return Generic{}
	}
	return c.Driver
}

func (c *Chip) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Chip) clk() clock.Clock {
	if c.Clock == nil {
		return clock.New()
	}
	return c.Clock
}

// ready reports whether data may be moved to or from the chip.
func (c *Chip) ready() error {
	if c.Host == nil || c.ReadMode == ReadModeUnknown || c.Size == 0 {
		return ErrNotInitialized
	}
	return nil
}

func (c *Chip) checkRange(addr uint32, n int) error {
	if err := c.ready(); err != nil {
		return err
	}
	if uint64(addr)+uint64(n) > uint64(c.Size) {
		return fmt.Errorf("%w: %#x+%#x exceeds size %#x", ErrOutOfRange, addr, n, c.Size)
	}
	return nil
}

// Init brings the chip to a known state: reset, read and probe the ID,
// detect the size unless already set, and apply the read mode (SlowRead if
// none was chosen). A nil Driver is chosen from the ID with Lookup.
func (c *Chip) Init() error {
	if c.Host == nil {
		return ErrNotInitialized
	}
	log := c.logger()

	if err := c.driver().Reset(c); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	id, err := ReadID(c)
	if err != nil {
		return fmt.Errorf("read ID: %w", err)
	}
	if c.Driver == nil {
		c.Driver = Lookup(id)
	}
	if err := c.Driver.Probe(c, id); err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	c.ID = id

	if c.Size == 0 {
		size, err := c.Driver.DetectSize(c)
		if err != nil {
			return fmt.Errorf("detect size: %w", err)
		}
		c.Size = size
	}

	if c.ReadMode == ReadModeUnknown {
		c.ReadMode = SlowRead
	}
	if err := c.Driver.SetReadMode(c); err != nil {
		return fmt.Errorf("set read mode %v: %w", c.ReadMode, err)
	}

	log.Info("flash initialized",
		zap.String("id", fmt.Sprintf("%06X", id)),
		zap.String("name", ChipName(id)),
		zap.String("driver", c.Driver.Name()),
		zap.Uint32("size", c.Size),
		zap.Stringer("mode", c.ReadMode))
	return nil
}

// Capabilities returns the capabilities of the selected driver.
func (c *Chip) Capabilities() Capabilities {
	return c.driver().Capabilities()
}

// Probe compares the chip identifier with id. See [Driver.Probe].
func (c *Chip) Probe(id uint32) error {
	return c.driver().Probe(c, id)
}

// Reset resets the chip and waits for it to become idle.
func (c *Chip) Reset() error {
	return c.driver().Reset(c)
}

// DetectSize detects the size and stores it in c.Size.
func (c *Chip) DetectSize() (uint32, error) {
	size, err := c.driver().DetectSize(c)
	if err != nil {
		return 0, err
	}
	c.Size = size
	return size, nil
}

// SetReadMode switches the chip and host to m.
func (c *Chip) SetReadMode(m ReadMode) error {
	prev := c.ReadMode
	c.ReadMode = m
	if err := c.driver().SetReadMode(c); err != nil {
		c.ReadMode = prev
		return err
	}
	return nil
}

// EraseChip erases the whole chip.
func (c *Chip) EraseChip() error {
	return c.driver().EraseChip(c)
}

// EraseSector erases the 4KB sector at addr.
func (c *Chip) EraseSector(addr uint32) error {
	if err := c.checkRange(addr, SectorSize); err != nil {
		return err
	}
	return c.driver().EraseSector(c, addr)
}

// EraseBlock erases the 64KB block at addr.
func (c *Chip) EraseBlock(addr uint32) error {
	if err := c.checkRange(addr, BlockSize); err != nil {
		return err
	}
	return c.driver().EraseBlock(c, addr)
}

// EraseRange erases the size bytes starting from baseAddr by repeatedly
// calling EraseBlock and EraseSector. baseAddr and size must be multiples
// of SectorSize.
func (c *Chip) EraseRange(baseAddr uint32, size int) error {
	if baseAddr%SectorSize != 0 || size%SectorSize != 0 {
		return fmt.Errorf("%w: erase range %#x+%#x is not sector aligned", ErrOutOfRange, baseAddr, size)
	}
	if err := c.checkRange(baseAddr, size); err != nil {
		return err
	}

	remaining := size
	addr := baseAddr
	for remaining > 0 {
		// Use 64KB blocks when aligned, 4KB sectors for the rest
		if addr%BlockSize == 0 && remaining >= BlockSize {
			if err := c.driver().EraseBlock(c, addr); err != nil {
				return err
			}
			addr += BlockSize
			remaining -= BlockSize
			continue
		}
		if err := c.driver().EraseSector(c, addr); err != nil {
			return err
		}
		addr += SectorSize
		remaining -= SectorSize
	}
	return nil
}

// Read fills buf from flash starting at addr.
func (c *Chip) Read(buf []byte, addr uint32) error {
	if err := c.checkRange(addr, len(buf)); err != nil {
		return err
	}
	return c.driver().Read(c, buf, addr)
}

// Write programs buf at addr. The range must have been erased.
func (c *Chip) Write(buf []byte, addr uint32) error {
	if err := c.checkRange(addr, len(buf)); err != nil {
		return err
	}
	return c.driver().Write(c, buf, addr)
}

// WriteEncrypted programs buf through on-the-fly encryption.
func (c *Chip) WriteEncrypted(buf []byte, addr uint32) error {
	return c.driver().WriteEncrypted(c, buf, addr)
}

// ReadAt implements io.ReaderAt.
func (c *Chip) ReadAt(p []byte, off int64) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if off < 0 || off >= int64(c.Size) {
		return 0, io.EOF
	}
	n := len(p)
	if rest := int64(c.Size) - off; int64(n) > rest {
		n = int(rest)
	}
	if err := c.Read(p[:n], uint32(off)); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. The range must have been erased.
func (c *Chip) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(c.Size) {
		return 0, ErrOutOfRange
	}
	if err := c.Write(p, uint32(off)); err != nil {
		return 0, err
	}
	return len(p), nil
}
