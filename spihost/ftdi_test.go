package spihost

import (
	"errors"
	"testing"
)

func TestFT2232HBoardIndex(t *testing.T) {
	// No FTDI driver is registered without host.Init.
	for _, n := range []int{-1, 0, 1} {
		if _, err := ft2232h(n); !errors.Is(err, ErrNotFound) {
			t.Errorf("board %d: err = %v, want ErrNotFound", n, err)
		}
	}
}
