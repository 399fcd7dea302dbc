package spihost

import (
	"fmt"
	"time"

	"github.com/gentam/spinor"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Options configure the SPI connection and the transfer limits.
type Options struct {
	Clock physic.Frequency
	Mode  spi.Mode

	// MaxWriteBytes limits a page program data phase.
	MaxWriteBytes int
	// MaxReadBytes limits a read data phase.
	MaxReadBytes int

	// Board selects among several attached FT2232H, in enumeration order.
	// Only OpenFT2232H uses it.
	Board int

	Log *zap.Logger
}

// DefaultOptions suit an FT2232H MPSSE driving a 3V NOR flash.
var DefaultOptions = Options{
	Clock: 30 * physic.MegaHertz, // [FTDI-AN_135|3.2.1 Divisors]
	// [FTDI-AN_114|1.2] > FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// [N25Q32|Table 7: SPI Modes] mode 0 and mode 3 are supported
	Mode:          spi.Mode0,
	MaxWriteBytes: spinor.PageSize,
	MaxReadBytes:  maxTx - maxHeader,
}

const (
	maxTx     = 65536 // [FTDI-AN_108]
	maxHeader = 5     // opcode + 24-bit address + dummy byte
	max24     = 1<<24 - 1
)

// Host implements spinor.Host on a spi.Conn.
type Host struct {
	conn spi.Conn
	cs   gpio.PinOut
	opts Options
	log  *zap.Logger
	mode spinor.IOMode
}

var _ spinor.Host = (*Host)(nil)

// New returns a Host that frames every command with cs. Zero fields of opts
// take their value from DefaultOptions.
func New(conn spi.Conn, cs gpio.PinOut, opts Options) *Host {
	if opts.MaxWriteBytes == 0 {
		opts.MaxWriteBytes = DefaultOptions.MaxWriteBytes
	}
	if opts.MaxReadBytes == 0 {
		opts.MaxReadBytes = DefaultOptions.MaxReadBytes
	}
	h := &Host{conn: conn, cs: cs, opts: opts, log: opts.Log}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// tx wraps SPI transaction with CS assertion.
func (h *Host) tx(buf []byte) (err error) {
	if err = h.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := h.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = h.conn.Tx(buf, buf)
	return
}

// header builds opcode + 24-bit address + dummy bytes, with room for n more
// bytes.
func header(cmd byte, addr uint32, dummyCycles, n int) ([]byte, error) {
	if addr > max24 {
		return nil, fmt.Errorf("address 0x%X out of 24-bit range", addr)
	}
	buf := make([]byte, 4+dummyCycles/8, 4+dummyCycles/8+n)
	buf[0] = cmd
	buf[1] = byte(addr >> 16)
	buf[2] = byte(addr >> 8)
	buf[3] = byte(addr)
	// buf[4:] dummy bytes
	return buf, nil
}

func (h *Host) CommonCommand(t *spinor.Transaction) error {
	addrBytes := t.AddressBits / 8
	buf := make([]byte, 0, 1+addrBytes+t.DummyCycles/8+len(t.MOSI)+len(t.MISO))
	buf = append(buf, t.Command)
	for i := addrBytes - 1; i >= 0; i-- {
		buf = append(buf, byte(t.Address>>(8*i)))
	}
	buf = append(buf, make([]byte, t.DummyCycles/8)...)
	buf = append(buf, t.MOSI...)
	buf = append(buf, make([]byte, len(t.MISO))...)

	if err := h.tx(buf); err != nil {
		return err
	}
	copy(t.MISO, buf[len(buf)-len(t.MISO):])
	return nil
}

// ReadStatus reads a status register. A 16-bit RDSR is made of RDSR and
// RDSR2 since chips repeat SR1 when clocked further.
func (h *Host) ReadStatus(cmd byte, bits int) (uint32, error) {
	if cmd == spinor.CmdReadStatus && bits == 16 {
		lo, err := h.ReadStatus(spinor.CmdReadStatus, 8)
		if err != nil {
			return 0, err
		}
		hi, err := h.ReadStatus(spinor.CmdReadStatus2, 8)
		if err != nil {
			return 0, err
		}
		return lo | hi<<8, nil
	}

	buf := make([]byte, 1+bits/8)
	buf[0] = cmd
	if err := h.tx(buf); err != nil {
		return 0, err
	}
	var v uint32
	for i, b := range buf[1:] {
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// WriteStatus sends the low byte first, so a 16-bit WRSR carries SR1 then
// SR2.
func (h *Host) WriteStatus(cmd byte, bits int, v uint32) error {
	buf := make([]byte, 1+bits/8)
	buf[0] = cmd
	for i := range bits / 8 {
		buf[1+i] = byte(v >> (8 * i))
	}
	return h.tx(buf)
}

func (h *Host) SetWriteProtect(protect bool) error {
	cmd := byte(spinor.CmdWriteEnable)
	if protect {
		cmd = spinor.CmdWriteDisable
	}
	return h.tx([]byte{cmd})
}

func (h *Host) ProgramPage(data []byte, addr uint32) error {
	if len(data) > h.opts.MaxWriteBytes {
		return fmt.Errorf("data must not exceed %d bytes", h.opts.MaxWriteBytes)
	}
	buf, err := header(spinor.CmdPageProgram, addr, 0, len(data))
	if err != nil {
		return err
	}
	return h.tx(append(buf, data...))
}

func (h *Host) EraseChip() error {
	return h.tx([]byte{spinor.CmdEraseChip})
}

func (h *Host) EraseSector(addr uint32) error {
	return h.erase(spinor.CmdErase4KB, addr)
}

func (h *Host) EraseBlock(addr uint32) error {
	return h.erase(spinor.CmdErase64KB, addr)
}

func (h *Host) erase(cmd byte, addr uint32) error {
	buf, err := header(cmd, addr, 0, 0)
	if err != nil {
		return err
	}
	return h.tx(buf)
}

func (h *Host) Read(out []byte, addr uint32) error {
	if h.mode.Command == 0 {
		return fmt.Errorf("%w: read mode not configured", spinor.ErrNotInitialized)
	}
	if len(out) > h.opts.MaxReadBytes {
		return fmt.Errorf("read of %d bytes exceeds %d", len(out), h.opts.MaxReadBytes)
	}
	buf, err := header(h.mode.Command, addr, h.mode.DummyCycles, len(out))
	if err != nil {
		return err
	}
	hdr := len(buf)
	buf = buf[:hdr+len(out)]
	if err := h.tx(buf); err != nil {
		return err
	}
	copy(out, buf[hdr:])
	return nil
}

func (h *Host) MaxWriteBytes() int { return h.opts.MaxWriteBytes }
func (h *Host) MaxReadBytes() int  { return h.opts.MaxReadBytes }

// ConfigureIOMode accepts the single line modes only.
func (h *Host) ConfigureIOMode(m spinor.IOMode) error {
	if m.DataLines() != 1 || m.AddressBits != 24 || m.DummyCycles%8 != 0 {
		return fmt.Errorf("%w: %v read on a single line SPI bus", spinor.ErrUnsupportedHost, m.Mode)
	}
	h.mode = m
	h.log.Debug("read mode", zap.Stringer("mode", m.Mode))
	return nil
}

// HostIdle is always true: every transaction completes before Tx returns.
func (h *Host) HostIdle() bool { return true }

func (h *Host) ReleasePowerDown() error {
	if err := h.tx([]byte{spinor.CmdReleasePowerDown}); err != nil {
		return err
	}
	time.Sleep(3 * time.Microsecond) // [W25Q128|9.6 AC Electrical Characteristics: tRES1]
	return nil
}

func (h *Host) PowerDown() error {
	if err := h.tx([]byte{spinor.CmdPowerDown}); err != nil {
		return err
	}
	time.Sleep(3 * time.Microsecond) // [W25Q128|9.6 AC Electrical Characteristics: tDP]
	return nil
}
