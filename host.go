package spinor

import (
	"fmt"
	"strings"
)

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	CmdReadID           = 0x9F
	CmdReadStatus       = 0x05 // RDSR
	CmdReadStatus2      = 0x35 // RDSR2
	CmdWriteStatus      = 0x01 // WRSR
	CmdWriteStatus2     = 0x31 // WRSR2
	CmdWriteEnable      = 0x06
	CmdWriteDisable     = 0x04
	CmdPageProgram      = 0x02
	CmdErase4KB         = 0x20 // Subsector Erase / Sector Erase (4KB)
	CmdErase64KB        = 0xD8 // Sector Erase / Block Erase (64KB)
	CmdEraseChip        = 0xC7 // Bulk Erase / Chip Erase
	CmdResetEnable      = 0x66
	CmdReset            = 0x99
	CmdRead             = 0x03
	CmdFastRead         = 0x0B
	CmdFastReadDualOut  = 0x3B
	CmdFastReadDualIO   = 0xBB
	CmdFastReadQuadOut  = 0x6B
	CmdFastReadQuadIO   = 0xEB
	CmdReleasePowerDown = 0xAB
	CmdPowerDown        = 0xB9
)

// Geometry fixed by the command set.
const (
	PageSize   = 256
	SectorSize = 4 << 10  // 4KB
	BlockSize  = 64 << 10 // 64KB
)

// Transaction is a single command issued to the chip: an opcode followed by
// optional address, dummy and data phases.
type Transaction struct {
	Command     byte
	Address     uint32
	AddressBits int // 0 for no address phase
	DummyCycles int
	MOSI        []byte // data sent after the address/dummy phases
	MISO        []byte // data received; its length sets the read phase
}

// Host is the transport that issues raw commands to one chip. It is
// provided by the caller and never owned by the driver.
type Host interface {
	// CommonCommand issues t and fills t.MISO.
	CommonCommand(t *Transaction) error

	// ReadStatus reads bits (8 or 16) of status with the given command.
	ReadStatus(cmd byte, bits int) (uint32, error)
	// WriteStatus writes bits (8 or 16) of status with the given command.
	WriteStatus(cmd byte, bits int, v uint32) error
	// SetWriteProtect sends write disable when protect is true and write
	// enable otherwise.
	SetWriteProtect(protect bool) error

	ProgramPage(buf []byte, addr uint32) error
	EraseChip() error
	EraseSector(addr uint32) error
	EraseBlock(addr uint32) error
	// Read reads len(buf) bytes using the mode set by ConfigureIOMode.
	Read(buf []byte, addr uint32) error

	MaxWriteBytes() int
	MaxReadBytes() int

	// ConfigureIOMode sets the command, address width, dummy cycles and
	// number of data lines used by subsequent reads.
	ConfigureIOMode(m IOMode) error

	// HostIdle reports whether the host side state machine is idle.
	HostIdle() bool
}

// ReadMode selects the read command and the number of I/O lines.
type ReadMode int

const (
	ReadModeUnknown ReadMode = iota
	SlowRead                 // 03h, single line
	FastRead                 // 0Bh, single line with dummy byte
	DualOutput               // 3Bh
	DualIO                   // BBh
	QuadOutput               // 6Bh
	QuadIO                   // EBh
)

var readModeNames = [...]string{
	ReadModeUnknown: "unknown",
	SlowRead:        "slow",
	FastRead:        "fast",
	DualOutput:      "dout",
	DualIO:          "dio",
	QuadOutput:      "qout",
	QuadIO:          "qio",
}

func (m ReadMode) String() string {
	if m < 0 || int(m) >= len(readModeNames) {
		return fmt.Sprintf("ReadMode(%d)", int(m))
	}
	return readModeNames[m]
}

// ParseReadMode parses the names printed by ReadMode.String.
func ParseReadMode(s string) (ReadMode, error) {
	for i, name := range readModeNames {
		if i != int(ReadModeUnknown) && strings.EqualFold(s, name) {
			return ReadMode(i), nil
		}
	}
	return ReadModeUnknown, fmt.Errorf("unknown read mode %q", s)
}

// IOMode is the host side configuration for a read mode.
type IOMode struct {
	Mode        ReadMode
	Command     byte
	AddressBits int // includes mode bits for DIO/QIO
	DummyCycles int
}

// DataLines returns the number of lines used for the data phase.
func (m IOMode) DataLines() int {
	switch m.Mode {
	case DualOutput, DualIO:
		return 2
	case QuadOutput, QuadIO:
		return 4
	default:
		return 1
	}
}

// ioModes maps a read mode to its host configuration.
var ioModes = map[ReadMode]IOMode{
	SlowRead:   {Mode: SlowRead, Command: CmdRead, AddressBits: 24},
	FastRead:   {Mode: FastRead, Command: CmdFastRead, AddressBits: 24, DummyCycles: 8},
	DualOutput: {Mode: DualOutput, Command: CmdFastReadDualOut, AddressBits: 24, DummyCycles: 8},
	DualIO:     {Mode: DualIO, Command: CmdFastReadDualIO, AddressBits: 28, DummyCycles: 2},
	QuadOutput: {Mode: QuadOutput, Command: CmdFastReadQuadOut, AddressBits: 24, DummyCycles: 8},
	QuadIO:     {Mode: QuadIO, Command: CmdFastReadQuadIO, AddressBits: 32, DummyCycles: 4},
}

// IOModeFor returns the host configuration for m.
func IOModeFor(m ReadMode) (IOMode, bool) {
	io, ok := ioModes[m]
	return io, ok
}
