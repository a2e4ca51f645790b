// Package cacheline documents and sizes the padding this module uses to
// keep hot atomic fields from false-sharing a cache line with their
// neighbors.
package cacheline

// Size is the assumed cache line size on supported platforms (x86-64 and
// most arm64 parts use 64 bytes).
const Size = 64
