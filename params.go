package spinor

import "time"

// Timing holds the wait-idle budgets used after each kind of operation.
type Timing struct {
	Idle        time.Duration // reset, status register writes
	PageProgram time.Duration
	SectorErase time.Duration // 4KB
	BlockErase  time.Duration // 64KB
	ChipErase   time.Duration
}

// orDefault fills zero fields of t from d.
func (t Timing) orDefault(d Timing) Timing {
	pick := func(v, def time.Duration) time.Duration {
		if v == 0 {
			return def
		}
		return v
	}
	return Timing{
		Idle:        pick(t.Idle, d.Idle),
		PageProgram: pick(t.PageProgram, d.PageProgram),
		SectorErase: pick(t.SectorErase, d.SectorErase),
		BlockErase:  pick(t.BlockErase, d.BlockErase),
		ChipErase:   pick(t.ChipErase, d.ChipErase),
	}
}

type chipParams struct {
	name   string
	timing Timing
}

var (
	chipIDMicronN25Q32      = [3]byte{0x20, 0xBA, 0x16}
	chipIDWinbondW25Q128    = [3]byte{0xEF, 0x40, 0x18}
	chipIDWinbondW25Q128DTR = [3]byte{0xEF, 0x70, 0x18} // W25Q128JV-IM/JM
	chipIDWinbondW25X20     = [3]byte{0xEF, 0x30, 0x12}
	chipIDMacronixMX25L256  = [3]byte{0xC2, 0x20, 0x19}
	chipIDGigaDeviceGD25Q64 = [3]byte{0xC8, 0x40, 0x17}
)

// [W25Q128|9.6 AC Electrical Characteristics]:
// tPP: Page Program Time
// tSE: Sector Erase Time (4KB)
// tBE2: Block Erase Time (64KB)
// tCE: Chip Erase Time
var w25q128Timing = Timing{
	PageProgram: 3 * time.Millisecond,
	SectorErase: 400 * time.Millisecond,
	BlockErase:  2000 * time.Millisecond,
	ChipErase:   200 * time.Second,
}

var knownChips = map[[3]byte]chipParams{
	chipIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",

		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		// tPP: PAGE PROGRAM cycle time (256 bytes)
		// tSSE: Subsector ERASE cycle time
		// tSE: Sector ERASE cycle time
		// tBE: Bulk ERASE cycle time
		timing: Timing{
			PageProgram: 5 * time.Millisecond,
			SectorErase: 800 * time.Millisecond,
			BlockErase:  3 * time.Second,
			ChipErase:   60 * time.Second,
		},
	},

	chipIDWinbondW25Q128: {
		name:   "Winbond W25Q 128Mb",
		timing: w25q128Timing,
	},
	chipIDWinbondW25Q128DTR: {
		name:   "Winbond W25Q 128Mb (DTR/QPI)",
		timing: w25q128Timing,
	},

	chipIDWinbondW25X20: {
		name: "Winbond W25X20",
		timing: Timing{
			PageProgram: 3 * time.Millisecond,
			SectorErase: 300 * time.Millisecond,
			BlockErase:  1000 * time.Millisecond,
			ChipErase:   4 * time.Second,
		},
	},

	chipIDMacronixMX25L256: {
		name: "Macronix MX25L256",
		timing: Timing{
			PageProgram: 3 * time.Millisecond,
			SectorErase: 400 * time.Millisecond,
			BlockErase:  2000 * time.Millisecond,
			ChipErase:   300 * time.Second,
		},
	},

	chipIDGigaDeviceGD25Q64: {
		name: "GigaDevice GD25Q64",
		timing: Timing{
			PageProgram: 2400 * time.Microsecond,
			SectorErase: 500 * time.Millisecond,
			BlockErase:  1200 * time.Millisecond,
			ChipErase:   60 * time.Second,
		},
	},
}

// maxTiming is the worst case over all known chips, used when the chip is
// not known.
var maxTiming = func() Timing {
	t := Timing{Idle: 200 * time.Millisecond}
	for _, p := range knownChips {
		t.PageProgram = max(t.PageProgram, p.timing.PageProgram)
		t.SectorErase = max(t.SectorErase, p.timing.SectorErase)
		t.BlockErase = max(t.BlockErase, p.timing.BlockErase)
		t.ChipErase = max(t.ChipErase, p.timing.ChipErase)
	}
	return t
}()

func jedecBytes(id uint32) [3]byte {
	return [3]byte{byte(id >> 16), byte(id >> 8), byte(id)}
}

// ChipName returns a non-empty name for known JEDEC IDs.
func ChipName(id uint32) string {
	return knownChips[jedecBytes(id)].name
}
