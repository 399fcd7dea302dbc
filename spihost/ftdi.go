package spihost

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device is an FT2232H board (iCEBreaker, EB82) whose MPSSE port is wired to
// a configuration flash shared with an iCE40 FPGA.
type Device struct {
	FTDI *ftdi.FT232H
	Host *Host

	cs    gpio.PinIO // ADBUS4 Chip Select
	reset gpio.PinIO // ADBUS7 Reset
	cdone gpio.PinIO // ADBUS6 Done

	conn spi.Conn
}

var hostInitialized atomic.Bool

// ErrNotFound is returned when no FT2232H is attached.
var ErrNotFound = errors.New("spihost: FT2232H not found")

// OpenFT2232H opens the MPSSE/SPI connection of the FT2232H selected by
// opts.Board. Zero fields of opts take their value from DefaultOptions.
func OpenFT2232H(opts Options) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}
	if opts.Clock == 0 {
		opts.Clock = DefaultOptions.Clock
	}

	ft, err := ft2232h(opts.Board)
	if err != nil {
		return nil, err
	}
	d := &Device{FTDI: ft}

	// [EB82|Appendix A. Sheet 2 of 5 (USB to SPI/RS232)] / [icebreaker-sch.pdf]
	// ADBUS0 | iCE_SCK
	// ADBUS1 | iCE_MOSI / FLASH_MOSI
	// ADBUS2 | iCE_MISO / FLASH_MISO
	// ADBUS4 | iCE_SS_B
	// ADBUS6 | iCE_CDONE
	// ADBUS7 | iCE_CRESET / iCE_RESET
	d.cs = d.FTDI.D4
	d.reset = d.FTDI.D7
	d.cdone = d.FTDI.D6

	if err := d.connectSPI(opts); err != nil {
		return nil, err
	}
	d.Host = New(d.conn, d.cs, opts)
	return d, nil
}

// ResetFPGA asserts (low) or deasserts (high) the FPGA reset line. The FPGA
// must be held in reset while the host drives the flash.
func (d *Device) ResetFPGA(l gpio.Level) error {
	return d.reset.Out(l)
}

// Done reports the FPGA CDONE line, high once configuration completed.
func (d *Device) Done() gpio.Level {
	return d.cdone.Read()
}

const (
	ftdiVendorID     = 0x0403
	ft2232hProductID = 0x6010
)

// ft2232h returns the n-th attached FT2232H, in enumeration order.
func ft2232h(n int) (*ftdi.FT232H, error) {
	var boards []*ftdi.FT232H
	for _, dev := range ftdi.All() {
		var info ftdi.Info
		dev.Info(&info)
		ft, ok := dev.(*ftdi.FT232H)
		if ok && info.VenID == ftdiVendorID && info.DevID == ft2232hProductID {
			boards = append(boards, ft)
		}
	}
	if n < 0 || n >= len(boards) {
		return nil, fmt.Errorf("%w: board %d of %d", ErrNotFound, n, len(boards))
	}
	return boards[n], nil
}

func (d *Device) connectSPI(opts Options) (err error) {
	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}
	d.conn, err = port.Connect(opts.Clock, opts.Mode, 8)
	return err
}
