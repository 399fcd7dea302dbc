package spinor

import "iter"

// Chunk is one transfer of a split access: Len bytes at flash address Addr,
// taken from offset Off of the caller's buffer.
type Chunk struct {
	Addr uint32
	Off  int
	Len  int
}

// Chunks splits the n bytes starting at addr into transfers of at most maxLen
// bytes that never cross a pageSize boundary. The first chunk is cut at the
// next page boundary when addr is unaligned. A pageSize of 0 disables the
// boundary constraint, as for reads.
func Chunks(addr uint32, n, pageSize, maxLen int) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if maxLen <= 0 {
			maxLen = n
		}
		for off := 0; off < n; {
			l := min(n-off, maxLen)
			if pageSize > 0 {
				l = min(l, pageCrossLength(addr, pageSize))
			}
			if !yield(Chunk{Addr: addr, Off: off, Len: l}) {
				return
			}
			addr += uint32(l)
			off += l
		}
	}
}

// pageCrossLength returns the number of bytes from offset to the end of its
// page.
func pageCrossLength(offset uint32, pageSize int) int {
	return pageSize - int(offset%uint32(pageSize))
}
