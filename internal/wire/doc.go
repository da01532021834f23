// Package wire owns the device wire contract and parsing primitives.
//
// Ownership boundary:
// - envelope header primitives
// - tlv payload primitives
// - per-kind schema validation entry points
// - stream codec over the frame layer
package wire
