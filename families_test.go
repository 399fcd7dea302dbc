package spinor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gentam/spinor"
	"github.com/gentam/spinor/simflash"
	"github.com/google/go-cmp/cmp"
)

func TestLookup(t *testing.T) {
	for _, tt := range []struct {
		id   uint32
		want string
	}{
		{0xEF4018, "winbond"},
		{0xEF7018, "winbond"},
		{0xEF3012, "winbond"},
		{0xC22019, "macronix"},
		{0xC84017, "gigadevice"},
		{0x20BA16, "micron"},
		{0x1F8401, "generic"},
	} {
		if got := spinor.Lookup(tt.id).Name(); got != tt.want {
			t.Errorf("Lookup(%06X) = %s, want %s", tt.id, got, tt.want)
		}
	}

	// Known chips carry their own budgets.
	for _, id := range []uint32{0xEF4018, 0xEF7018} {
		if got := spinor.Lookup(id).Capabilities().Timing.PageProgram; got != 3*time.Millisecond {
			t.Errorf("%06X page program budget = %v, want 3ms", id, got)
		}
	}
}

func TestFamilyDetectSize(t *testing.T) {
	for _, tt := range []struct {
		id      uint32
		want    uint32
		wantErr error
	}{
		{id: 0xEF4014, want: 1 << 20},
		{id: 0xC22019, want: 32 << 20},
		{id: 0x20BA16, want: 4 << 20},
		{id: 0xC8400F, wantErr: spinor.ErrUnsupportedChip},
		{id: 0xEF4020, wantErr: spinor.ErrUnsupportedChip},
	} {
		c, _, _ := newChipWithID(t, tt.id, simflash.Options{Size: 64 << 10})
		c.Driver = spinor.Lookup(tt.id)
		size, err := c.DetectSize()
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%06X: err = %v, want %v", tt.id, err, tt.wantErr)
			continue
		}
		if err == nil && size != tt.want {
			t.Errorf("%06X: size = %d, want %d", tt.id, size, tt.want)
		}
	}
}

func TestSetReadModeQuad(t *testing.T) {
	for _, tt := range []struct {
		name   string
		id     uint32
		qeMask uint16
		want   []simflash.Op
	}{
		{
			name: "winbond writes SR1 and SR2 together", id: 0xEF4014, qeMask: 1 << 9,
			want: []simflash.Op{{Cmd: spinor.CmdWriteStatus, Len: 2}},
		},
		{
			name: "macronix sets SR1 bit 6", id: 0xC22014, qeMask: 1 << 6,
			want: []simflash.Op{{Cmd: spinor.CmdWriteStatus, Len: 1}},
		},
		{
			name: "gigadevice writes SR2", id: 0xC84014, qeMask: 1 << 9,
			want: []simflash.Op{{Cmd: spinor.CmdWriteStatus2, Len: 1}},
		},
		{
			name: "micron has no QE bit", id: 0x20BA14,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, dev, _ := newChipWithID(t, tt.id, simflash.Options{QuadEnableMask: tt.qeMask})
			c.Driver = spinor.Lookup(tt.id)

			for _, mode := range []spinor.ReadMode{spinor.QuadIO, spinor.QuadOutput} {
				if err := c.SetReadMode(mode); err != nil {
					t.Fatal(err)
				}
				if got := dev.IOMode().Mode; got != mode {
					t.Errorf("host mode = %v, want %v", got, mode)
				}
			}
			// The second switch finds QE already set and writes nothing.
			if diff := cmp.Diff(tt.want, dev.Ops); diff != "" {
				t.Errorf("status writes mismatch (-want +got):\n%s", diff)
			}
			if dev.Status()&tt.qeMask != tt.qeMask {
				t.Errorf("status %04x lacks QE %04x", dev.Status(), tt.qeMask)
			}
			if err := c.Read(make([]byte, 16), 0); err != nil {
				t.Errorf("quad read: %v", err)
			}
		})
	}
}

func TestSetReadModeNonQuadLeavesQE(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{QuadEnableMask: 1 << 9})
	c.Driver = spinor.Lookup(0xEF4014)
	for _, mode := range []spinor.ReadMode{spinor.FastRead, spinor.DualOutput, spinor.DualIO} {
		if err := c.SetReadMode(mode); err != nil {
			t.Fatal(err)
		}
	}
	if len(dev.Ops) != 0 {
		t.Errorf("unexpected status writes: %v", dev.Ops)
	}
}

func TestSetReadModeQuadEnableOverride(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{QuadEnableMask: 1 << 6})
	c.QuadEnable = &spinor.QuadEnableSR1Bit6
	if err := c.SetReadMode(spinor.QuadIO); err != nil {
		t.Fatal(err)
	}
	if dev.Status()&(1<<6) == 0 {
		t.Errorf("status %04x: SR1 bit 6 not set", dev.Status())
	}
}

func TestSetReadModeNoResponse(t *testing.T) {
	c, dev, _ := newChip(t, simflash.Options{QuadEnableMask: 1 << 9})
	c.Driver = spinor.Lookup(0xEF4014)
	dev.LockStatus = true

	if err := c.SetReadMode(spinor.QuadIO); !errors.Is(err, spinor.ErrNoResponse) {
		t.Errorf("err = %v, want ErrNoResponse", err)
	}
	if c.ReadMode != spinor.SlowRead {
		t.Errorf("read mode = %v after failure, want slow", c.ReadMode)
	}
}

func TestQuadReadNeedsQE(t *testing.T) {
	// Setting the host alone is not enough on parts with a QE bit.
	c, _, _ := newChip(t, simflash.Options{QuadEnableMask: 1 << 9})
	c.Driver = spinor.Lookup(0x20BA14)
	if err := c.SetReadMode(spinor.QuadOutput); err != nil {
		t.Fatal(err)
	}
	if err := c.Read(make([]byte, 4), 0); !errors.Is(err, simflash.ErrQuadDisabled) {
		t.Errorf("err = %v, want ErrQuadDisabled", err)
	}
}
