package spinor

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Generic implements the lowest common subset of SPI NOR commands that work
// across most chips. The zero value is a usable driver; family drivers
// embed it with their own Timing and QuadEnable.
type Generic struct {
	// Timing overrides the default wait-idle budgets field by field.
	Timing Timing
	// QuadEnable is used when the Chip does not set one. The zero value
	// selects QuadEnableSR2Bit1.
	QuadEnable QuadEnable
}

var _ Driver = Generic{}

func (Generic) Name() string { return "generic" }

func (g Generic) Capabilities() Capabilities {
	return Capabilities{
		ReadModes:     []ReadMode{SlowRead, FastRead, DualOutput, DualIO, QuadOutput, QuadIO},
		PageSize:      PageSize,
		MaxProgramLen: PageSize,
		EraseSizes:    []int{SectorSize, BlockSize},
		ChipErase:     true,
		Timing:        g.timing(),
	}
}

func (g Generic) timing() Timing {
	return g.Timing.orDefault(maxTiming)
}

func (g Generic) quadEnable(c *Chip) QuadEnable {
	if c.QuadEnable != nil {
		return *c.QuadEnable
	}
	if g.QuadEnable.Mask == 0 {
		return QuadEnableSR2Bit1
	}
	return g.QuadEnable
}

// ReadID reads the 3 byte JEDEC ID: manufacturer, memory type, capacity.
// Extended device string is ignored.
func ReadID(c *Chip) (uint32, error) {
	if c.Host == nil {
		return 0, ErrNotInitialized
	}
	t := Transaction{Command: CmdReadID, MISO: make([]byte, 3)}
	if err := c.Host.CommonCommand(&t); err != nil {
		return 0, err
	}
	return uint32(t.MISO[0])<<16 | uint32(t.MISO[1])<<8 | uint32(t.MISO[2]), nil
}

// ReadStatus reads SR1 with RDSR.
func ReadStatus(c *Chip) (StatusRegister, error) {
	if c.Host == nil {
		return 0, ErrNotInitialized
	}
	v, err := c.Host.ReadStatus(CmdReadStatus, 8)
	return StatusRegister(v), err
}

// Probe always succeeds once the ID was read; whether it matched id is only
// logged, callers compare Chip.ID themselves.
func (Generic) Probe(c *Chip, id uint32) error {
	got, err := ReadID(c)
	if err != nil {
		return err
	}
	if got != id {
		c.logger().Debug("probe: ID mismatch",
			zap.String("expected", fmt.Sprintf("%06X", id)),
			zap.String("got", fmt.Sprintf("%06X", got)))
	}
	return nil
}

// Reset issues the reset-enable/reset pair and waits for the chip.
func (g Generic) Reset(c *Chip) (err error) {
	defer func() { c.Metrics.op("reset", err) }()
	if c.Host == nil {
		return ErrNotInitialized
	}
	for _, cmd := range []byte{CmdResetEnable, CmdReset} {
		if err := c.Host.CommonCommand(&Transaction{Command: cmd}); err != nil {
			return err
		}
	}
	return c.driver().WaitIdle(c, g.timing().Idle)
}

// sizeFieldPattern is the fixed high nibble of the size field.
const sizeFieldPattern = 0x10

// DetectSize takes the low 4 bits of the ID as N and returns 2^N bytes. The
// high nibble of the low ID byte must read 0x1, anything else means the ID
// is garbage (no chip, wrong bus setup).
func (Generic) DetectSize(c *Chip) (uint32, error) {
	id, err := ReadID(c)
	if err != nil {
		return 0, err
	}
	if byte(id)&0xF0 != sizeFieldPattern {
		return 0, fmt.Errorf("%w: ID %06X", ErrUnsupportedChip, id)
	}
	return 1 << (id & 0x0F), nil
}

// EraseChip erases the whole chip with CE (C7h).
func (g Generic) EraseChip(c *Chip) (err error) {
	defer func() { c.Metrics.op("erase_chip", err) }()
	return g.erase(c, "erase chip", 0, g.timing().ChipErase, func() error {
		return c.Host.EraseChip()
	})
}

// EraseSector erases the 4KB sector at addr with SE (20h).
func (g Generic) EraseSector(c *Chip, addr uint32) (err error) {
	defer func() { c.Metrics.op("erase_sector", err) }()
	return g.erase(c, "erase sector", addr, g.timing().SectorErase, func() error {
		return c.Host.EraseSector(addr)
	})
}

// EraseBlock erases the 64KB block at addr with BE (D8h).
func (g Generic) EraseBlock(c *Chip, addr uint32) (err error) {
	defer func() { c.Metrics.op("erase_block", err) }()
	return g.erase(c, "erase block", addr, g.timing().BlockErase, func() error {
		return c.Host.EraseBlock(addr)
	})
}

func (g Generic) erase(c *Chip, what string, addr uint32, timeout time.Duration, cmd func() error) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.logger().Debug(what, zap.Uint32("addr", addr), zap.Duration("timeout", timeout))

	d := c.driver()
	if err := d.WriteEnable(c, false); err != nil {
		return err
	}
	if err := cmd(); err != nil {
		return err
	}
	return d.WaitIdle(c, timeout)
}

// Read splits the read into transfers of at most MaxReadBytes using the
// command set up by SetReadMode.
func (Generic) Read(c *Chip, buf []byte, addr uint32) (err error) {
	defer func() { c.Metrics.op("read", err) }()
	if err := c.ready(); err != nil {
		return err
	}
	for ch := range Chunks(addr, len(buf), 0, c.Host.MaxReadBytes()) {
		if err := c.Host.Read(buf[ch.Off:ch.Off+ch.Len], ch.Addr); err != nil {
			return err
		}
	}
	c.Metrics.addBytes("read", len(buf))
	return nil
}

// PageProgram programs buf with PP (02h) and waits for completion.
func (g Generic) PageProgram(c *Chip, buf []byte, addr uint32) (err error) {
	defer func() { c.Metrics.op("page_program", err) }()
	if err := c.ready(); err != nil {
		return err
	}
	d := c.driver()
	if err := d.WriteEnable(c, false); err != nil {
		return err
	}
	if err := c.Host.ProgramPage(buf, addr); err != nil {
		return err
	}
	if err := d.WaitIdle(c, g.timing().PageProgram); err != nil {
		return err
	}
	c.Metrics.addBytes("program", len(buf))
	return nil
}

// Write splits buf into page programs that neither cross a page boundary
// of the driver nor exceed the smaller of its MaxProgramLen and the host's
// MaxWriteBytes. Chunks are programmed one after the other; the first
// failure stops the write and nothing is rolled back.
func (Generic) Write(c *Chip, buf []byte, addr uint32) error {
	if err := c.ready(); err != nil {
		return err
	}
	log := c.logger()
	d := c.driver()
	pageSize, maxLen := programLimits(d.Capabilities(), c.Host.MaxWriteBytes())
	for ch := range Chunks(addr, len(buf), pageSize, maxLen) {
		if err := d.PageProgram(c, buf[ch.Off:ch.Off+ch.Len], ch.Addr); err != nil {
			log.Debug("write aborted", zap.Uint32("addr", ch.Addr), zap.Int("written", ch.Off), zap.Error(err))
			return err
		}
	}
	return nil
}

// programLimits returns the page size and chunk limit for page programs.
// Zero capabilities fall back to PageSize.
func programLimits(caps Capabilities, hostMax int) (pageSize, maxLen int) {
	pageSize = caps.PageSize
	if pageSize <= 0 {
		pageSize = PageSize
	}
	maxLen = caps.MaxProgramLen
	if maxLen <= 0 {
		maxLen = pageSize
	}
	if hostMax > 0 {
		maxLen = min(maxLen, hostMax)
	}
	return pageSize, maxLen
}

// WriteEncrypted is not supported by the generic driver.
func (Generic) WriteEncrypted(*Chip, []byte, uint32) error {
	return ErrUnsupportedHost
}

// WriteEnable sends WREN (06h), or WRDI (04h) when protect is set, and
// checks that the write enable latch followed.
func (Generic) WriteEnable(c *Chip, protect bool) error {
	if c.Host == nil {
		return ErrNotInitialized
	}
	if err := c.Host.SetWriteProtect(protect); err != nil {
		return err
	}
	sr, err := ReadStatus(c)
	if err != nil {
		return err
	}
	if sr.WriteEnabled() == protect {
		c.logger().Debug("write enable latch mismatch", zap.Bool("protect", protect), zap.Stringer("status", sr))
		return ErrWriteEnableFailed
	}
	return nil
}

// SetReadMode sets the Quad Enable bit when c.ReadMode is a quad mode, then
// configures the host for c.ReadMode.
func (g Generic) SetReadMode(c *Chip) error {
	if IsQuadMode(c) {
		if err := SetQuadEnable(c, g.quadEnable(c), true); err != nil {
			return err
		}
	}
	return ConfigHostReadMode(c)
}

// IsQuadMode reports whether c is configured for Quad Output or Quad I/O.
func IsQuadMode(c *Chip) bool {
	return c.ReadMode == QuadOutput || c.ReadMode == QuadIO
}

// SetQuadEnable sets or clears the Quad Enable bit described by qe. Nothing
// is written when the bit already has the requested value. The new value
// is read back; a bit that did not stick yields ErrNoResponse.
func SetQuadEnable(c *Chip, qe QuadEnable, enable bool) error {
	if c.Host == nil {
		return ErrNotInitialized
	}
	log := c.logger()

	cur, err := c.Host.ReadStatus(qe.ReadCmd, qe.Width)
	if err != nil {
		return err
	}
	want := qe.apply(cur, enable)
	if want == cur {
		return nil
	}
	log.Debug("update quad enable", zap.Stringer("qe", qe), zap.Bool("enable", enable),
		zap.Stringer("from", StatusRegister(cur)), zap.Stringer("to", StatusRegister(want)))

	d := c.driver()
	if err := d.WriteEnable(c, false); err != nil {
		return err
	}
	// WIP and WEL are read-only; send them as zero.
	if qe.ReadCmd == CmdReadStatus {
		want &^= StatusBusy | StatusWriteEnabled
	}
	if err := c.Host.WriteStatus(qe.WriteCmd, qe.Width, want); err != nil {
		return err
	}
	timing := d.Capabilities().Timing
	if err := d.WaitIdle(c, timing.Idle); err != nil {
		return err
	}

	got, err := c.Host.ReadStatus(qe.ReadCmd, qe.Width)
	if err != nil {
		return err
	}
	if qe.apply(got, enable) != got {
		log.Debug("quad enable did not stick", zap.Stringer("status", StatusRegister(got)))
		return ErrNoResponse
	}
	return nil
}

// ConfigHostReadMode configures the host with the command, address width
// and dummy cycles of c.ReadMode.
func ConfigHostReadMode(c *Chip) error {
	if c.Host == nil {
		return ErrNotInitialized
	}
	m, ok := IOModeFor(c.ReadMode)
	if !ok {
		return fmt.Errorf("%w: read mode %v", ErrNotInitialized, c.ReadMode)
	}
	c.logger().Debug("configure host read mode",
		zap.Stringer("mode", m.Mode),
		zap.String("cmd", fmt.Sprintf("%02Xh", m.Command)),
		zap.Int("addr_bits", m.AddressBits),
		zap.Int("dummy", m.DummyCycles))
	return c.Host.ConfigureIOMode(m)
}
