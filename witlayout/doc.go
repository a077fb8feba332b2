// Package witlayout computes canonical ABI memory layouts for WIT types.
//
// Records and tuples become structs with explicit padding, variants, options
// and results become a discriminant followed by a union of case payloads,
// and strings and lists become a (ptr, len) pair of u32 values. The resulting
// layouts drive accessors over guest memory segments:
//
//	l, _ := witlayout.NewCalculator().Layout(recordType)
//	h, _ := access.ForLayout(l, layout.GroupElement("count"))
//	n, _ := access.Get[uint32](h, guestSeg)
package witlayout
