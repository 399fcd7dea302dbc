package main

import (
	"flag"
	"fmt"

	"github.com/gentam/spinor"
	"periph.io/x/host/v3/ftdi"
)

func infoCommand(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var showFTDI bool
	fs.BoolVar(&showFTDI, "ftdi", false, "also print FT2232H details")
	fs.Parse(args)

	s := mustOpen()
	defer s.Close()
	c := s.chip

	sr, err := spinor.ReadStatus(c)
	if err != nil {
		s.fail("read status register failed: %v", err)
	}
	name := spinor.ChipName(c.ID)
	if name == "" {
		name = "unknown"
	}
	caps := c.Capabilities()

	fmt.Printf("JEDEC ID:        %06X\n", c.ID)
	fmt.Printf("Name:            %s\n", name)
	fmt.Printf("Driver:          %s\n", c.Driver.Name())
	fmt.Printf("Size:            %d bytes (%d KiB)\n", c.Size, c.Size>>10)
	fmt.Printf("Read mode:       %s\n", c.ReadMode)
	fmt.Printf("Status:          %s\n", sr)
	fmt.Printf("Read modes:      %v\n", caps.ReadModes)
	fmt.Printf("Page program:    %v\n", caps.Timing.PageProgram)
	fmt.Printf("Sector erase:    %v\n", caps.Timing.SectorErase)
	fmt.Printf("Block erase:     %v\n", caps.Timing.BlockErase)
	fmt.Printf("Chip erase:      %v\n", caps.Timing.ChipErase)

	if !showFTDI {
		return
	}
	if s.dev == nil {
		s.fail("-ftdi needs real hardware")
	}
	ft := s.dev.FTDI

	// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Type:            %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		s.fail("failed to read EEPROM: %v", err)
	}
	fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
	fmt.Printf("Desc:            %s\n", ee.Desc)
	fmt.Printf("Serial:          %s\n", ee.Serial)
	fmt.Printf("FPGA done:       %s\n", s.dev.Done())
}
