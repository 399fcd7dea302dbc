// Command spinor reads, writes, erases and verifies SPI NOR flash attached
// to an FT2232H board, or a flash image file with -sim.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gentam/spinor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	simImage    = flag.String("sim", "", "simulate a flash chip backed by this image file")
	simSize     = flag.Int("size", 16<<20, "size of the simulated chip in bytes")
	simID       = flag.Uint("id", 0xEF4018, "JEDEC ID of the simulated chip")
	readMode    = flag.String("mode", "slow", "read mode: slow, fast, dout, dio, qout, qio")
	board       = flag.Int("board", 0, "FT2232H to use when several are attached")
	verbose     = flag.Bool("v", false, "debug logging")
	dumpMetrics = flag.Bool("metrics", false, "print driver metrics on exit")
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	spinor [flags] <command> [arguments]

Commands:
	info	 print flash chip information
	read	 read flash memory
	write	 write flash memory
	erase	 erase flash memory
	verify	 compare flash memory with a file

Flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "info":
		infoCommand(args)
	case "read":
		readCommand(args)
	case "write":
		writeCommand(args)
	case "erase":
		eraseCommand(args)
	case "verify":
		verifyCommand(args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

func parseReadMode() spinor.ReadMode {
	m, err := spinor.ParseReadMode(*readMode)
	if err != nil {
		fatalUsage("%v", err)
	}
	return m
}

func printMetrics(reg *prometheus.Registry) {
	if !*dumpMetrics {
		return
	}
	mfs, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gather metrics failed:", err)
		return
	}
	enc := expfmt.NewEncoder(os.Stderr, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			fmt.Fprintln(os.Stderr, "encode metrics failed:", err)
			return
		}
	}
}
