package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/alloc"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

func main() {
	var (
		file        = flag.String("file", "", "File to map")
		offsetStr   = flag.String("offset", "0", "Mapping offset (e.g. 4096, 4KiB)")
		lengthStr   = flag.String("length", "0", "Mapping length, 0 maps to end of file")
		as          = flag.String("as", "hex", "Carrier to decode as (hex, byte, bool, char, short, int, long, float, double, address)")
		order       = flag.String("order", "native", "Byte order (native, little, big)")
		stride      = flag.Uint64("stride", 0, "Bytes between decoded values, defaults to the carrier size")
		copyArena   = flag.Bool("copy", false, "Copy the mapping into an arena before dumping")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: segdump -file <path> [-offset n] [-length n] [-as carrier] [-order native|little|big]")
		fmt.Fprintln(os.Stderr, "       segdump -file <path> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		memseg.SetLogger(l)
		defer l.Sync()
	}

	if err := run(*file, *offsetStr, *lengthStr, *as, *order, *stride, *copyArena, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path, offsetStr, lengthStr, as, orderStr string, stride uint64, copyArena, interactive bool) error {
	offset, err := humanize.ParseBytes(offsetStr)
	if err != nil {
		return fmt.Errorf("parse offset: %w", err)
	}
	length, err := humanize.ParseBytes(lengthStr)
	if err != nil {
		return fmt.Errorf("parse length: %w", err)
	}
	carrier, err := parseCarrier(as)
	if err != nil {
		return err
	}
	order, err := parseOrder(orderStr)
	if err != nil {
		return err
	}

	sc := scope.NewConfined()
	defer sc.Close()

	seg, err := segment.MapFile(path, offset, length, segment.MapReadOnly, sc)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	memseg.Logger().Debug("mapped file",
		zap.String("path", path),
		zap.String("size", humanize.IBytes(seg.Size())))

	if copyArena {
		if seg, err = copyIntoArena(seg, sc); err != nil {
			return fmt.Errorf("copy: %w", err)
		}
	}

	v := view{carrier: carrier, order: order, stride: stride, width: termWidth()}
	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode requires a terminal")
		}
		return runInteractive(path, seg, v)
	}
	return render(os.Stdout, seg, v)
}

// copyIntoArena copies seg into arena memory owned by sc.
func copyIntoArena(seg *segment.Segment, sc *scope.Scope) (*segment.Segment, error) {
	arena, err := alloc.NewArena(sc, alloc.DefaultOptions())
	if err != nil {
		return nil, err
	}
	dst, err := arena.Allocate(seg.Size(), 8)
	if err != nil {
		return nil, err
	}
	if err := dst.CopyFrom(seg); err != nil {
		return nil, err
	}
	memseg.Logger().Debug("copied into arena", zap.Stringer("arena", arena))
	return dst, nil
}

// termWidth picks the hex dump row width for the current terminal.
func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w >= 80 {
		return 16
	}
	return 8
}
