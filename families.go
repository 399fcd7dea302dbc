package spinor

import "fmt"

// Manufacturer IDs (first byte of the JEDEC ID).
const (
	MfrMicron     = 0x20
	MfrMacronix   = 0xC2
	MfrGigaDevice = 0xC8
	MfrWinbond    = 0xEF
)

// detectJEDECSize decodes the capacity byte of the JEDEC ID as log2 of the
// size in bytes, the convention followed by every family below.
func detectJEDECSize(c *Chip) (uint32, error) {
	id, err := ReadID(c)
	if err != nil {
		return 0, err
	}
	capacity := byte(id)
	if capacity < 0x10 || capacity > 0x1F {
		return 0, fmt.Errorf("%w: ID %06X", ErrUnsupportedChip, id)
	}
	return 1 << capacity, nil
}

// Winbond drives W25Q/W25X parts. QE sits in SR2 and is written with a
// 16-bit WRSR, which all W25Q revisions accept.
type Winbond struct{ Generic }

func NewWinbond(t Timing) Winbond {
	return Winbond{Generic{Timing: t, QuadEnable: QuadEnableSR2Bit1Wide}}
}

func (Winbond) Name() string                       { return "winbond" }
func (Winbond) DetectSize(c *Chip) (uint32, error) { return detectJEDECSize(c) }

// Macronix drives MX25L parts, which keep QE in SR1 bit 6.
type Macronix struct{ Generic }

func NewMacronix(t Timing) Macronix {
	return Macronix{Generic{Timing: t, QuadEnable: QuadEnableSR1Bit6}}
}

func (Macronix) Name() string                       { return "macronix" }
func (Macronix) DetectSize(c *Chip) (uint32, error) { return detectJEDECSize(c) }

// GigaDevice drives GD25Q parts. QE is the generic SR2 bit 1.
type GigaDevice struct{ Generic }

func NewGigaDevice(t Timing) GigaDevice {
	return GigaDevice{Generic{Timing: t}}
}

func (GigaDevice) Name() string                       { return "gigadevice" }
func (GigaDevice) DetectSize(c *Chip) (uint32, error) { return detectJEDECSize(c) }

// Micron drives N25Q parts. They have no Quad Enable bit: quad commands
// are always accepted, so only the host needs configuring.
type Micron struct{ Generic }

func NewMicron(t Timing) Micron {
	return Micron{Generic{Timing: t}}
}

func (Micron) Name() string                       { return "micron" }
func (Micron) DetectSize(c *Chip) (uint32, error) { return detectJEDECSize(c) }

func (Micron) SetReadMode(c *Chip) error {
	return ConfigHostReadMode(c)
}

// Lookup returns the driver for a JEDEC ID: the family driver for known
// manufacturers, Generic otherwise. Timing comes from the table of known
// chips when the ID is listed there.
func Lookup(id uint32) Driver {
	t := knownChips[jedecBytes(id)].timing
	switch byte(id >> 16) {
	case MfrWinbond:
		return NewWinbond(t)
	case MfrMacronix:
		return NewMacronix(t)
	case MfrGigaDevice:
		return NewGigaDevice(t)
	case MfrMicron:
		return NewMicron(t)
	default:
		return Generic{Timing: t}
	}
}
