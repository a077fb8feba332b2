// Package valist reads and writes variable argument lists laid out in a
// segment.
//
// Values are placed back to back at their layout's alignment. Slotted lists
// round every value up to whole slots, the way register save areas and stack
// argument areas do. Calling-convention specific classification is left to
// the caller.
package valist
