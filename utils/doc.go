// Package utils provides small shared helpers for the circuit-led packages.
//
// It contains:
//   - Telemetry timestamp parsing and formatting
//   - Elapsed playback time formatting
//   - Planar distance calculation
package utils
