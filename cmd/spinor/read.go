package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		addr    uint
		nread   int
		outFile string
	)
	fs.UintVar(&addr, "a", 0, "start address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read (0: to the end of flash)")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	s := mustOpen()
	defer s.Close()
	c := s.chip

	if nread == 0 {
		nread = int(c.Size) - int(addr)
	}
	if nread < 0 {
		s.fail("address %#x beyond flash size %#x", addr, c.Size)
	}

	data := make([]byte, nread)
	if err := c.Read(data, uint32(addr)); err != nil {
		s.fail("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "write file failed:", err)
	}
}
