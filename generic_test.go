package spinor_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gentam/spinor"
	"github.com/gentam/spinor/simflash"
	"github.com/google/go-cmp/cmp"
	"github.com/jmhodges/clock"
)

// newChip returns a chip on a blank 1MB simulated Winbond part, driven by
// the generic driver in slow read mode. opts.ID is ignored.
func newChip(t *testing.T, opts simflash.Options) (*spinor.Chip, *simflash.Device, clock.FakeClock) {
	t.Helper()
	return newChipWithID(t, 0xEF4014, opts)
}

// newChipWithID is newChip for a part answering 9Fh with id, which may be
// the all-zero ID of an absent chip.
func newChipWithID(t *testing.T, id uint32, opts simflash.Options) (*spinor.Chip, *simflash.Device, clock.FakeClock) {
	t.Helper()
	fc := clock.NewFake()
	opts.Clock = fc
	opts.ID = id
	if opts.Size == 0 {
		opts.Size = 1 << 20
	}
	dev, err := simflash.NewMem(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dev.Close() })

	c := &spinor.Chip{Host: dev, Driver: spinor.Generic{}, Size: uint32(opts.Size), Clock: fc}
	if err := c.SetReadMode(spinor.SlowRead); err != nil {
		t.Fatal(err)
	}
	return c, dev, fc
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 1)
	}
	return b
}

func TestReadID(t *testing.T) {
	c, _, _ := newChipWithID(t, 0xC84017, simflash.Options{})
	id, err := spinor.ReadID(c)
	if err != nil {
		t.Fatal(err)
	}
	if id != 0xC84017 {
		t.Errorf("id = %06X, want C84017", id)
	}
}

func TestGenericDetectSize(t *testing.T) {
	for _, tt := range []struct {
		id      uint32
		want    uint32
		wantErr error
	}{
		{id: 0xEF4014, want: 1 << 4},
		{id: 0xEF4018, want: 1 << 8},
		{id: 0x000010, want: 1},
		{id: 0xC8401F, want: 1 << 15},
		{id: 0xEF4020, wantErr: spinor.ErrUnsupportedChip},
		{id: 0xFFFFFF, wantErr: spinor.ErrUnsupportedChip},
		{id: 0x000000, wantErr: spinor.ErrUnsupportedChip},
	} {
		c, _, _ := newChipWithID(t, tt.id, simflash.Options{Size: 64 << 10})
		size, err := c.DetectSize()
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%06X: err = %v, want %v", tt.id, err, tt.wantErr)
			continue
		}
		if err == nil && (size != tt.want || c.Size != tt.want) {
			t.Errorf("%06X: size = %d (chip %d), want %d", tt.id, size, c.Size, tt.want)
		}
	}
}

func TestProbe(t *testing.T) {
	c, _, _ := newChip(t, simflash.Options{})
	if err := c.Probe(0xEF4014); err != nil {
		t.Errorf("matching probe: %v", err)
	}
	// A mismatch is only logged.
	if err := c.Probe(0x123456); err != nil {
		t.Errorf("mismatching probe: %v", err)
	}
}

func TestWriteEnable(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{})
	g := spinor.Generic{}

	if err := g.WriteEnable(c, false); err != nil {
		t.Fatal(err)
	}
	if dev.Status()&spinor.StatusWriteEnabled == 0 {
		t.Error("WEL not set after write enable")
	}
	if err := g.WriteEnable(c, true); err != nil {
		t.Fatal(err)
	}
	if dev.Status()&spinor.StatusWriteEnabled != 0 {
		t.Error("WEL set after write protect")
	}

	dev.IgnoreWriteEnable = true
	if err := g.WriteEnable(c, false); !errors.Is(err, spinor.ErrWriteEnableFailed) {
		t.Errorf("err = %v, want ErrWriteEnableFailed", err)
	}
}

func TestWriteProtectLatchStuck(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{})
	g := spinor.Generic{}
	if err := g.WriteEnable(c, false); err != nil {
		t.Fatal(err)
	}

	// WRDI is dropped, so WEL stays set.
	dev.IgnoreWriteEnable = true
	if err := g.WriteEnable(c, true); !errors.Is(err, spinor.ErrWriteEnableFailed) {
		t.Errorf("err = %v, want ErrWriteEnableFailed", err)
	}
	if dev.Status()&spinor.StatusWriteEnabled == 0 {
		t.Error("WEL cleared by an ignored WRDI")
	}
}

func TestWriteRead(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{MaxWriteBytes: 64})
	data := pattern(300)
	if err := c.Write(data, 0x10); err != nil {
		t.Fatal(err)
	}

	want := []simflash.Op{
		{Cmd: spinor.CmdPageProgram, Addr: 0x10, Len: 64},
		{Cmd: spinor.CmdPageProgram, Addr: 0x50, Len: 64},
		{Cmd: spinor.CmdPageProgram, Addr: 0x90, Len: 64},
		{Cmd: spinor.CmdPageProgram, Addr: 0xD0, Len: 48},
		{Cmd: spinor.CmdPageProgram, Addr: 0x100, Len: 60},
	}
	if diff := cmp.Diff(want, dev.Ops); diff != "" {
		t.Errorf("page programs mismatch (-want +got):\n%s", diff)
	}

	got := make([]byte, len(data))
	if err := c.Read(got, 0x10); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back differs:\n%x\n%x", got, data)
	}

	around := make([]byte, 0x10)
	if err := c.Read(around, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(around, bytes.Repeat([]byte{0xFF}, 0x10)) {
		t.Errorf("bytes before the write changed: %x", around)
	}
}

// halfPages is a driver for parts programmed in 128 byte pages, 32 bytes at
// a time.
type halfPages struct{ spinor.Generic }

func (d halfPages) Capabilities() spinor.Capabilities {
	caps := d.Generic.Capabilities()
	caps.PageSize = 128
	caps.MaxProgramLen = 32
	return caps
}

func TestWriteFollowsDriverPages(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{MaxWriteBytes: 64})
	c.Driver = halfPages{}
	data := pattern(80)
	if err := c.Write(data, 0x70); err != nil {
		t.Fatal(err)
	}

	want := []simflash.Op{
		{Cmd: spinor.CmdPageProgram, Addr: 0x70, Len: 16},
		{Cmd: spinor.CmdPageProgram, Addr: 0x80, Len: 32},
		{Cmd: spinor.CmdPageProgram, Addr: 0xA0, Len: 32},
	}
	if diff := cmp.Diff(want, dev.Ops); diff != "" {
		t.Errorf("page programs mismatch (-want +got):\n%s", diff)
	}
	got := make([]byte, len(data))
	if err := c.Read(got, 0x70); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back differs:\n%x\n%x", got, data)
	}
}

func TestProgramClearsBitsOnly(t *testing.T) {
	c, _, _ := newChip(t, simflash.Options{})
	if err := c.Write([]byte{0x0F}, 0x200); err != nil {
		t.Fatal(err)
	}
	if err := c.Write([]byte{0xF3}, 0x200); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 1)
	if err := c.Read(got, 0x200); err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x03 {
		t.Errorf("got %#02x, want 0x03", got[0])
	}
}

func TestEraseThenRead(t *testing.T) {
	c, _, _ := newChip(t, simflash.Options{})
	erased := func(addr uint32, n int) bool {
		t.Helper()
		buf := make([]byte, n)
		if err := c.Read(buf, addr); err != nil {
			t.Fatal(err)
		}
		return bytes.Equal(buf, bytes.Repeat([]byte{0xFF}, n))
	}

	if err := c.Write(pattern(spinor.SectorSize), 0x1000); err != nil {
		t.Fatal(err)
	}
	if err := c.Write(pattern(spinor.PageSize), 0x2000); err != nil {
		t.Fatal(err)
	}
	if err := c.EraseSector(0x1000); err != nil {
		t.Fatal(err)
	}
	if !erased(0x1000, spinor.SectorSize) {
		t.Error("sector not erased")
	}
	if erased(0x2000, spinor.PageSize) {
		t.Error("next sector erased too")
	}

	if err := c.EraseBlock(0); err != nil {
		t.Fatal(err)
	}
	if !erased(0, spinor.BlockSize) {
		t.Error("block not erased")
	}

	if err := c.Write(pattern(100), 0x80000); err != nil {
		t.Fatal(err)
	}
	if err := c.EraseChip(); err != nil {
		t.Fatal(err)
	}
	if !erased(0x80000, 100) {
		t.Error("chip not erased")
	}
}

func TestWriteEncryptedUnsupported(t *testing.T) {
	c, _, _ := newChip(t, simflash.Options{})
	if err := c.WriteEncrypted(pattern(16), 0); !errors.Is(err, spinor.ErrUnsupportedHost) {
		t.Errorf("err = %v, want ErrUnsupportedHost", err)
	}
}

func TestNotInitialized(t *testing.T) {
	var none spinor.Chip
	if err := none.Reset(); !errors.Is(err, spinor.ErrNotInitialized) {
		t.Errorf("Reset without host: %v", err)
	}
	if _, err := spinor.ReadID(&none); !errors.Is(err, spinor.ErrNotInitialized) {
		t.Errorf("ReadID without host: %v", err)
	}

	dev, err := simflash.NewMem(simflash.Options{ID: 0xEF4014, Size: 64 << 10})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	noMode := spinor.Chip{Host: dev, Size: 64 << 10}
	if err := noMode.Read(make([]byte, 4), 0); !errors.Is(err, spinor.ErrNotInitialized) {
		t.Errorf("Read without read mode: %v", err)
	}
	noSize := spinor.Chip{Host: dev, ReadMode: spinor.SlowRead}
	if err := noSize.EraseSector(0); !errors.Is(err, spinor.ErrNotInitialized) {
		t.Errorf("EraseSector without size: %v", err)
	}
	if err := spinor.ConfigHostReadMode(&noSize); err != nil {
		t.Errorf("ConfigHostReadMode: %v", err)
	}
	if err := spinor.ConfigHostReadMode(&noMode); !errors.Is(err, spinor.ErrNotInitialized) {
		t.Errorf("ConfigHostReadMode without mode: %v", err)
	}
}

func TestOutOfRange(t *testing.T) {
	c, _, _ := newChip(t, simflash.Options{})
	if err := c.Read(make([]byte, 2), c.Size-1); !errors.Is(err, spinor.ErrOutOfRange) {
		t.Errorf("Read past end: %v", err)
	}
	if err := c.Write(make([]byte, 1), c.Size); !errors.Is(err, spinor.ErrOutOfRange) {
		t.Errorf("Write past end: %v", err)
	}
	if err := c.EraseBlock(c.Size); !errors.Is(err, spinor.ErrOutOfRange) {
		t.Errorf("EraseBlock past end: %v", err)
	}
}

func TestReset(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{})
	if err := (spinor.Generic{}).WriteEnable(c, false); err != nil {
		t.Fatal(err)
	}
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if dev.Status()&spinor.StatusWriteEnabled != 0 {
		t.Error("WEL survived reset")
	}
}
