// Package track holds the discretized track: a fixed, ordered table of
// markers (the LEDs of the circuit board) and nearest-marker lookup.
//
// The marker table is loaded once from a YAML data file and never changes
// for the lifetime of the process. Callers depend on the Index interface, so
// the brute-force LinearIndex can be replaced by a spatial index without
// touching them.
package track
