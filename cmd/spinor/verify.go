package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// checksum returns the CRC-32 of everything read from r.
func checksum(r io.Reader) (uint32, error) {
	h := crc.NewHashWithTable(crcTable)
	buf := make([]byte, 32<<10)
	for {
		n, err := r.Read(buf)
		h.Update(buf[:n])
		if err == io.EOF {
			return h.CRC32(), nil
		}
		if err != nil {
			return 0, err
		}
	}
}

func verifyCommand(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var (
		filename string
		addr     uint
	)
	fs.StringVar(&filename, "f", "", "file to compare with")
	fs.UintVar(&addr, "a", 0, "start address")
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	input, err := os.Open(filename)
	if err != nil {
		fatalf("failed to open file: %v", err)
	}
	defer input.Close()
	fi, err := input.Stat()
	if err != nil {
		fatalf("%v", err)
	}
	size := fi.Size()

	want, err := checksum(input)
	if err != nil {
		fatalf("read file failed: %v", err)
	}

	s := mustOpen()
	defer s.Close()

	var got uint32
	flash := io.NewSectionReader(s.chip, int64(addr), size)
	err = withProgress("Verifying "+filename, flash, size, func(r io.Reader) (err error) {
		got, err = checksum(r)
		return err
	})
	if err != nil {
		s.fail("read flash failed: %v", err)
	}

	fmt.Printf("file:  %08x\nflash: %08x\n", want, got)
	if got != want {
		s.fail("verify failed")
	}
}
