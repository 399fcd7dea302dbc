package spinor

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name     string
		addr     uint32
		n        int
		pageSize int
		maxLen   int
		want     []Chunk
	}{
		{
			name: "aligned pages", addr: 0, n: 512, pageSize: 256, maxLen: 256,
			want: []Chunk{{0, 0, 256}, {256, 256, 256}},
		},
		{
			// The fourth chunk stops at the page boundary at 0x100.
			name: "unaligned program with small host limit", addr: 0x10, n: 300, pageSize: 256, maxLen: 64,
			want: []Chunk{{0x10, 0, 64}, {0x50, 64, 64}, {0x90, 128, 64}, {0xD0, 192, 48}, {0x100, 240, 60}},
		},
		{
			name: "unaligned read ignores pages", addr: 0x10, n: 300, pageSize: 0, maxLen: 64,
			want: []Chunk{{0x10, 0, 64}, {0x50, 64, 64}, {0x90, 128, 64}, {0xD0, 192, 64}, {0x110, 256, 44}},
		},
		{
			name: "short write crossing a page", addr: 0xFA, n: 10, pageSize: 256, maxLen: 256,
			want: []Chunk{{0xFA, 0, 6}, {0x100, 6, 4}},
		},
		{
			name: "single byte at page end", addr: 0x1FF, n: 1, pageSize: 256, maxLen: 256,
			want: []Chunk{{0x1FF, 0, 1}},
		},
		{
			name: "no limit", addr: 5, n: 10, pageSize: 0, maxLen: 0,
			want: []Chunk{{5, 0, 10}},
		},
		{
			name: "empty", addr: 0x100, n: 0, pageSize: 256, maxLen: 64,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Chunks(tt.addr, tt.n, tt.pageSize, tt.maxLen))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Chunks(%#x, %d, %d, %d) mismatch (-want +got):\n%s", tt.addr, tt.n, tt.pageSize, tt.maxLen, diff)
			}
		})
	}
}

func TestChunksProperties(t *testing.T) {
	for _, addr := range []uint32{0, 1, 0xFF, 0x100, 0x1234} {
		for _, maxLen := range []int{1, 17, 64, 256} {
			next := addr
			total := 0
			for ch := range Chunks(addr, 1000, PageSize, maxLen) {
				if ch.Addr != next || ch.Off != total {
					t.Fatalf("addr %#x max %d: chunk %+v not contiguous", addr, maxLen, ch)
				}
				if ch.Len <= 0 || ch.Len > maxLen {
					t.Fatalf("addr %#x max %d: chunk %+v has bad length", addr, maxLen, ch)
				}
				if ch.Addr/PageSize != (ch.Addr+uint32(ch.Len)-1)/PageSize {
					t.Fatalf("addr %#x max %d: chunk %+v crosses a page", addr, maxLen, ch)
				}
				next += uint32(ch.Len)
				total += ch.Len
			}
			if total != 1000 {
				t.Errorf("addr %#x max %d: covered %d bytes", addr, maxLen, total)
			}
		}
	}
}

func TestChunksStop(t *testing.T) {
	n := 0
	for range Chunks(0, 1024, PageSize, PageSize) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d times after break", n)
	}
}

func TestPageCrossLength(t *testing.T) {
	for _, tt := range []struct {
		offset uint32
		want   int
	}{
		{0, 256},
		{0x10, 240},
		{0xFF, 1},
		{0x100, 256},
	} {
		if got := pageCrossLength(tt.offset, PageSize); got != tt.want {
			t.Errorf("pageCrossLength(%#x) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}
