package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wippyai/memseg/access"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/segment"
)

type view struct {
	carrier layout.Carrier // zero means hex dump
	order   layout.ByteOrder
	stride  uint64
	width   int
}

var carrierNames = map[string]layout.Carrier{
	"byte":    layout.CarrierByte,
	"bool":    layout.CarrierBool,
	"char":    layout.CarrierChar,
	"short":   layout.CarrierShort,
	"int":     layout.CarrierInt,
	"float":   layout.CarrierFloat,
	"long":    layout.CarrierLong,
	"double":  layout.CarrierDouble,
	"address": layout.CarrierAddress,
}

// carrierCycle is the order the interactive view steps through.
var carrierCycle = []layout.Carrier{
	0,
	layout.CarrierByte,
	layout.CarrierShort,
	layout.CarrierInt,
	layout.CarrierLong,
	layout.CarrierFloat,
	layout.CarrierDouble,
	layout.CarrierAddress,
}

func parseCarrier(s string) (layout.Carrier, error) {
	if s == "" || s == "hex" {
		return 0, nil
	}
	c, ok := carrierNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown carrier %q", s)
	}
	return c, nil
}

func parseOrder(s string) (layout.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "native":
		return layout.NativeOrder(), nil
	case "little", "le":
		return layout.LittleEndian, nil
	case "big", "be":
		return layout.BigEndian, nil
	}
	return 0, fmt.Errorf("unknown byte order %q", s)
}

func render(w io.Writer, seg *segment.Segment, v view) error {
	if v.carrier == 0 {
		return hexDump(w, seg, v.width)
	}
	return decode(w, seg, v)
}

func hexDump(w io.Writer, seg *segment.Segment, width int) error {
	if width <= 0 {
		width = 16
	}
	data, err := seg.ToBytes()
	if err != nil {
		return err
	}
	for off := 0; off < len(data); off += width {
		line := data[off:min(off+width, len(data))]

		var hex, text strings.Builder
		for i := range width {
			if i < len(line) {
				fmt.Fprintf(&hex, "%02x ", line[i])
				text.WriteByte(printable(line[i]))
			} else {
				hex.WriteString("   ")
			}
			if i == width/2-1 {
				hex.WriteByte(' ')
			}
		}
		if _, err := fmt.Fprintf(w, "%08x  %s |%s|\n", off, hex.String(), text.String()); err != nil {
			return err
		}
	}
	return nil
}

func printable(b byte) byte {
	if b < 0x20 || b > 0x7e {
		return '.'
	}
	return b
}

// decode prints one value per stride through an unaligned handle with a
// single free coordinate.
func decode(w io.Writer, seg *segment.Segment, v view) error {
	size := v.carrier.ByteSize()
	stride := v.stride
	if stride == 0 {
		stride = size
	}
	h, err := access.Unaligned(v.carrier, v.order).WithStride(stride)
	if err != nil {
		return err
	}
	if seg.Size() < size {
		return nil
	}
	count := (seg.Size()-size)/stride + 1
	for i := range count {
		s, err := formatValue(h, seg, i)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%08x  %s\n", i*stride, s); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(h *access.Handle, seg *segment.Segment, i uint64) (string, error) {
	switch h.Carrier() {
	case layout.CarrierByte:
		x, err := access.Get[int8](h, seg, i)
		return fmt.Sprint(x), err
	case layout.CarrierBool:
		x, err := access.Get[uint8](h, seg, i)
		return fmt.Sprint(x != 0), err
	case layout.CarrierChar:
		x, err := access.Get[uint16](h, seg, i)
		return fmt.Sprintf("%q", rune(x)), err
	case layout.CarrierShort:
		x, err := access.Get[int16](h, seg, i)
		return fmt.Sprint(x), err
	case layout.CarrierInt:
		x, err := access.Get[int32](h, seg, i)
		return fmt.Sprint(x), err
	case layout.CarrierLong:
		x, err := access.Get[int64](h, seg, i)
		return fmt.Sprint(x), err
	case layout.CarrierFloat:
		x, err := access.Get[float32](h, seg, i)
		return formatFloat(float64(x), 32), err
	case layout.CarrierDouble:
		x, err := access.Get[float64](h, seg, i)
		return formatFloat(x, 64), err
	case layout.CarrierAddress:
		x, err := access.Get[uintptr](h, seg, i)
		return segment.RawAddress(x).String(), err
	}
	return "", fmt.Errorf("unknown carrier %s", h.Carrier())
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	if bits == 32 {
		return fmt.Sprintf("%g", float32(f))
	}
	return fmt.Sprintf("%g", f)
}
