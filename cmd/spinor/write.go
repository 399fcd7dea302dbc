package main

import (
	"flag"
	"io"
	"os"

	"github.com/gentam/spinor"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		filename  string
		addr      uint
		erase     bool
		bulkErase bool
	)
	fs.StringVar(&filename, "f", "", "input file")
	fs.UintVar(&addr, "a", 0, "start address")
	fs.BoolVar(&erase, "e", true, "erase the sectors covered by the file first")
	fs.BoolVar(&bulkErase, "E", false, "bulk erase entire flash first")
	fs.Parse(args)

	if filename == "" && !bulkErase {
		fatalUsage("input file is required")
	}

	var input *os.File
	var size int64
	if filename != "" {
		var err error
		input, err = os.Open(filename)
		if err != nil {
			fatalf("failed to open file: %v", err)
		}
		defer input.Close()
		fi, err := input.Stat()
		if err != nil {
			fatalf("%v", err)
		}
		size = fi.Size()
	}

	s := mustOpen()
	defer s.Close()
	c := s.chip

	if bulkErase {
		if err := c.EraseChip(); err != nil {
			s.fail("bulk erase flash failed: %v", err)
		}
	}
	if input == nil {
		return
	}

	if erase && !bulkErase {
		start := uint32(addr) &^ (spinor.SectorSize - 1)
		end := (uint32(addr) + uint32(size) + spinor.SectorSize - 1) &^ (spinor.SectorSize - 1)
		if err := c.EraseRange(start, int(end-start)); err != nil {
			s.fail("erase flash failed: %v", err)
		}
	}

	w := io.NewOffsetWriter(c, int64(addr))
	err := withProgress("Writing "+filename, input, size, func(r io.Reader) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		s.fail("write flash failed: %v", err)
	}
}
