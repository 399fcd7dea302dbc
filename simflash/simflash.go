// Package simflash emulates a SPI NOR flash chip behind the spinor.Host
// interface. The array is kept in an afero file so an image can live in
// memory for tests or on disk for the command line tool.
//
// The emulation follows real parts where it matters to a driver: commands
// other than status reads are ignored while the chip is busy, program and
// erase need the write enable latch, programming can only clear bits, and a
// page program that runs past the end of a page wraps to its start.
package simflash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gentam/spinor"
	"github.com/jmhodges/clock"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrTooLong       = errors.New("simflash: transfer exceeds host limit")
	ErrNoReadMode    = errors.New("simflash: host read mode not configured")
	ErrQuadDisabled  = errors.New("simflash: quad read with Quad Enable bit clear")
	ErrOutOfRange    = errors.New("simflash: address out of range")
	ErrUnsupportedOp = errors.New("simflash: unsupported command")
)

// Timing is how long each operation keeps the chip busy.
type Timing struct {
	StatusWrite time.Duration
	PageProgram time.Duration
	SectorErase time.Duration
	BlockErase  time.Duration
	ChipErase   time.Duration
}

// DefaultTiming is a fast but non-zero set of busy times.
var DefaultTiming = Timing{
	StatusWrite: 2 * time.Millisecond,
	PageProgram: 700 * time.Microsecond,
	SectorErase: 45 * time.Millisecond,
	BlockErase:  150 * time.Millisecond,
	ChipErase:   2 * time.Second,
}

// Options describe the emulated chip and host.
type Options struct {
	ID   uint32 // JEDEC ID returned by 9Fh
	Size int    // bytes; 0 takes the size of an existing image

	MaxWriteBytes int // default spinor.PageSize
	MaxReadBytes  int // default 64

	// QuadEnableMask is the QE bit in the 16-bit SR2:SR1 space. Quad reads
	// fail unless it is set. Zero means quad reads need no QE bit.
	QuadEnableMask uint16

	Timing Timing      // zero uses DefaultTiming
	Clock  clock.Clock // nil uses the system clock
	Log    *zap.Logger
}

// Op records a mutating command accepted by the chip.
type Op struct {
	Cmd  byte
	Addr uint32
	Len  int
}

// Device is an emulated chip. It is not safe for concurrent use.
type Device struct {
	f    afero.File
	opts Options
	clk  clock.Clock
	log  *zap.Logger

	status     uint16 // SR2:SR1 without WIP and WEL
	wel        bool
	resetArmed bool
	busyUntil  time.Time
	mode       spinor.IOMode

	// Ops lists the accepted program, erase and status write commands.
	Ops []Op

	// Fault injection.
	HostBusyPolls     int  // HostIdle reports busy this many more times
	StuckBusy         bool // WIP never clears
	IgnoreWriteEnable bool // WREN/WRDI have no effect
	LockStatus        bool // status register writes have no effect
}

var _ spinor.Host = (*Device)(nil)

// New opens or creates the image at path on fs. A new or short image is
// extended with erased (0xFF) bytes up to opts.Size.
func New(fs afero.Fs, path string, opts Options) (*Device, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if opts.Size == 0 {
		opts.Size = int(fi.Size())
	}
	if opts.Size == 0 {
		f.Close()
		return nil, fmt.Errorf("image %s: size not given and file is empty", path)
	}
	if cur := fi.Size(); cur < int64(opts.Size) {
		if err := fill(f, cur, int64(opts.Size)-cur); err != nil {
			f.Close()
			return nil, fmt.Errorf("extend image: %w", err)
		}
	}

	if opts.MaxWriteBytes == 0 {
		opts.MaxWriteBytes = spinor.PageSize
	}
	if opts.MaxReadBytes == 0 {
		opts.MaxReadBytes = 64
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming
	}
	d := &Device{f: f, opts: opts, clk: opts.Clock, log: opts.Log}
	if d.clk == nil {
		d.clk = clock.New()
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d, nil
}

// NewMem returns a blank chip backed by memory.
func NewMem(opts Options) (*Device, error) {
	return New(afero.NewMemMapFs(), "flash.bin", opts)
}

// Close syncs and closes the image.
func (d *Device) Close() error {
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}

// Size returns the size of the array in bytes.
func (d *Device) Size() int { return d.opts.Size }

// Status returns SR2:SR1 as the chip would report it.
func (d *Device) Status() uint16 {
	s := d.status
	if d.busy() {
		s |= spinor.StatusBusy
	}
	if d.wel {
		s |= spinor.StatusWriteEnabled
	}
	return s
}

// IOMode returns the host configuration last applied.
func (d *Device) IOMode() spinor.IOMode { return d.mode }

func (d *Device) busy() bool {
	return d.StuckBusy || d.clk.Now().Before(d.busyUntil)
}

func (d *Device) startOp(cmd byte, addr uint32, n int, dur time.Duration) {
	d.Ops = append(d.Ops, Op{Cmd: cmd, Addr: addr, Len: n})
	d.wel = false
	d.busyUntil = d.clk.Now().Add(dur)
	d.log.Debug("op", zap.String("cmd", fmt.Sprintf("%02Xh", cmd)), zap.Uint32("addr", addr), zap.Int("len", n))
}

// accept reports whether a mutating command is taken: the chip must be idle
// and, when wel is set, have its write enable latch set.
func (d *Device) accept(needWEL bool) bool {
	if d.busy() {
		return false
	}
	return !needWEL || d.wel
}

func (d *Device) CommonCommand(t *spinor.Transaction) error {
	armed := d.resetArmed
	d.resetArmed = false

	switch t.Command {
	case spinor.CmdReadID:
		id := [3]byte{byte(d.opts.ID >> 16), byte(d.opts.ID >> 8), byte(d.opts.ID)}
		for i := range t.MISO {
			t.MISO[i] = 0
			if i < len(id) {
				t.MISO[i] = id[i]
			}
		}
	case spinor.CmdReadStatus, spinor.CmdReadStatus2:
		v, err := d.ReadStatus(t.Command, 8*len(t.MISO))
		if err != nil {
			return err
		}
		for i := range t.MISO {
			t.MISO[i] = byte(v >> (8 * i))
		}
	case spinor.CmdWriteEnable, spinor.CmdWriteDisable:
		return d.SetWriteProtect(t.Command == spinor.CmdWriteDisable)
	case spinor.CmdResetEnable:
		d.resetArmed = !d.busy()
	case spinor.CmdReset:
		if armed {
			d.wel = false
			d.busyUntil = time.Time{}
			d.log.Debug("reset")
		}
	default:
		return fmt.Errorf("%w: %02Xh", ErrUnsupportedOp, t.Command)
	}
	return nil
}

func (d *Device) ReadStatus(cmd byte, bits int) (uint32, error) {
	s := d.Status()
	switch {
	case cmd == spinor.CmdReadStatus && bits == 8:
		return uint32(s & 0xFF), nil
	case cmd == spinor.CmdReadStatus && bits == 16:
		return uint32(s), nil
	case cmd == spinor.CmdReadStatus2 && bits == 8:
		return uint32(s >> 8), nil
	}
	return 0, fmt.Errorf("%w: read status %02Xh/%d", ErrUnsupportedOp, cmd, bits)
}

func (d *Device) WriteStatus(cmd byte, bits int, v uint32) error {
	const readOnly = spinor.StatusBusy | spinor.StatusWriteEnabled

	next := d.status
	switch {
	case cmd == spinor.CmdWriteStatus && bits == 8:
		next = next&0xFF00 | uint16(v)&0xFF&^readOnly
	case cmd == spinor.CmdWriteStatus && bits == 16:
		next = uint16(v) &^ readOnly
	case cmd == spinor.CmdWriteStatus2 && bits == 8:
		next = next&0x00FF | uint16(v)<<8
	default:
		return fmt.Errorf("%w: write status %02Xh/%d", ErrUnsupportedOp, cmd, bits)
	}
	if !d.accept(true) {
		return nil
	}
	if !d.LockStatus {
		d.status = next
	}
	d.startOp(cmd, 0, bits/8, d.opts.Timing.StatusWrite)
	return nil
}

func (d *Device) SetWriteProtect(protect bool) error {
	if d.busy() || d.IgnoreWriteEnable {
		return nil
	}
	d.wel = !protect
	return nil
}

// ProgramPage clears the bits that are zero in buf. Bytes past the end of
// the page wrap to its start, as on real parts.
func (d *Device) ProgramPage(buf []byte, addr uint32) error {
	if len(buf) > d.opts.MaxWriteBytes {
		return fmt.Errorf("%w: %d > %d", ErrTooLong, len(buf), d.opts.MaxWriteBytes)
	}
	if err := d.checkAddr(addr, 1); err != nil {
		return err
	}
	if !d.accept(true) {
		return nil
	}

	base := addr &^ (spinor.PageSize - 1)
	page := make([]byte, spinor.PageSize)
	if _, err := d.f.ReadAt(page, int64(base)); err != nil && err != io.EOF {
		return err
	}
	for i, b := range buf {
		page[(int(addr-base)+i)%spinor.PageSize] &= b
	}
	if _, err := d.f.WriteAt(page, int64(base)); err != nil {
		return err
	}
	d.startOp(spinor.CmdPageProgram, addr, len(buf), d.opts.Timing.PageProgram)
	return nil
}

func (d *Device) EraseChip() error {
	return d.erase(spinor.CmdEraseChip, 0, d.opts.Size, d.opts.Timing.ChipErase)
}

func (d *Device) EraseSector(addr uint32) error {
	return d.erase(spinor.CmdErase4KB, addr&^(spinor.SectorSize-1), spinor.SectorSize, d.opts.Timing.SectorErase)
}

func (d *Device) EraseBlock(addr uint32) error {
	return d.erase(spinor.CmdErase64KB, addr&^(spinor.BlockSize-1), spinor.BlockSize, d.opts.Timing.BlockErase)
}

func (d *Device) erase(cmd byte, addr uint32, n int, dur time.Duration) error {
	if err := d.checkAddr(addr, n); err != nil {
		return err
	}
	if !d.accept(true) {
		return nil
	}
	if err := fill(d.f, int64(addr), int64(n)); err != nil {
		return err
	}
	d.startOp(cmd, addr, n, dur)
	return nil
}

func (d *Device) Read(buf []byte, addr uint32) error {
	if len(buf) > d.opts.MaxReadBytes {
		return fmt.Errorf("%w: %d > %d", ErrTooLong, len(buf), d.opts.MaxReadBytes)
	}
	if d.mode.Command == 0 {
		return ErrNoReadMode
	}
	if d.mode.DataLines() == 4 && d.opts.QuadEnableMask != 0 && d.status&d.opts.QuadEnableMask == 0 {
		return ErrQuadDisabled
	}
	if err := d.checkAddr(addr, len(buf)); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(buf, int64(addr)); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (d *Device) MaxWriteBytes() int { return d.opts.MaxWriteBytes }
func (d *Device) MaxReadBytes() int  { return d.opts.MaxReadBytes }

func (d *Device) ConfigureIOMode(m spinor.IOMode) error {
	d.mode = m
	return nil
}

func (d *Device) HostIdle() bool {
	if d.HostBusyPolls > 0 {
		d.HostBusyPolls--
		return false
	}
	return true
}

func (d *Device) checkAddr(addr uint32, n int) error {
	if int64(addr)+int64(n) > int64(d.opts.Size) {
		return fmt.Errorf("%w: %#x+%#x", ErrOutOfRange, addr, n)
	}
	return nil
}

// fill writes n erased bytes at off.
func fill(f afero.File, off, n int64) error {
	ff := make([]byte, min(n, 64<<10))
	for i := range ff {
		ff[i] = 0xFF
	}
	for n > 0 {
		chunk := min(n, int64(len(ff)))
		if _, err := f.WriteAt(ff[:chunk], off); err != nil {
			return err
		}
		off += chunk
		n -= chunk
	}
	return nil
}
