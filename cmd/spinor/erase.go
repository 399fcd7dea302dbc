package main

import "flag"

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		addr      uint
		n         int
		bulkErase bool
	)
	fs.UintVar(&addr, "a", 0, "start address, 4KB aligned")
	fs.IntVar(&n, "n", 0, "number of bytes to erase, a multiple of 4KB")
	fs.BoolVar(&bulkErase, "E", false, "bulk erase entire flash")
	fs.Parse(args)

	if n == 0 && !bulkErase {
		fatalUsage("-n or -E is required")
	}

	s := mustOpen()
	defer s.Close()

	if bulkErase {
		if err := s.chip.EraseChip(); err != nil {
			s.fail("bulk erase flash failed: %v", err)
		}
		return
	}
	if err := s.chip.EraseRange(uint32(addr), n); err != nil {
		s.fail("erase flash failed: %v", err)
	}
}
