package spinor

import (
	"fmt"
	"strings"
)

// Status register bits common to every chip.
const (
	StatusBusy         = 1 << 0 // WIP: write in progress
	StatusWriteEnabled = 1 << 1 // WEL: write enable latch
)

// StatusRegister represents the status register(s) of the flash chip. The
// low byte is SR1; 16-bit reads carry SR2 in the high byte.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister uint32

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect() uint8         { return uint8(sr>>2) & 0x7 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&StatusWriteEnabled != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&StatusBusy != 0 }

// Has reports whether every bit of mask is set.
func (sr StatusRegister) Has(mask uint32) bool { return uint32(sr)&mask == mask }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	if sr > 0xFF {
		b = fmt.Sprintf("%016b", uint16(sr))
	}
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.SectorProtect() {
		s = append(s, "SEC")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if bp := sr.BlockProtect(); bp != 0 {
		s = append(s, fmt.Sprintf("BP=%d", bp))
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// QuadEnable describes where a chip keeps its Quad Enable bit: the commands
// reading and writing the register holding it, the width of that register
// access in bits, and the bit mask itself.
type QuadEnable struct {
	ReadCmd  byte
	WriteCmd byte
	Width    int
	Mask     uint32
}

// Common Quad Enable locations.
var (
	// QE in SR2 bit 1, accessed through RDSR2/WRSR2. GigaDevice, newer
	// Winbond and most other vendors.
	QuadEnableSR2Bit1 = QuadEnable{ReadCmd: CmdReadStatus2, WriteCmd: CmdWriteStatus2, Width: 8, Mask: 1 << 1}

	// QE in SR2 bit 1 but written together with SR1 by a 16-bit WRSR.
	// Older Winbond parts without WRSR2.
	QuadEnableSR2Bit1Wide = QuadEnable{ReadCmd: CmdReadStatus, WriteCmd: CmdWriteStatus, Width: 16, Mask: 1 << 9}

	// QE in SR1 bit 6. Macronix and ISSI.
	QuadEnableSR1Bit6 = QuadEnable{ReadCmd: CmdReadStatus, WriteCmd: CmdWriteStatus, Width: 8, Mask: 1 << 6}
)

// apply returns sr with the QE bit set or cleared.
func (qe QuadEnable) apply(sr uint32, enable bool) uint32 {
	if enable {
		return sr | qe.Mask
	}
	return sr &^ qe.Mask
}

func (qe QuadEnable) String() string {
	return fmt.Sprintf("rdsr=%02Xh wrsr=%02Xh width=%d mask=%#x", qe.ReadCmd, qe.WriteCmd, qe.Width, qe.Mask)
}
