// Package goroutineid extracts the calling goroutine's runtime-assigned
// id. corelib has no notion of an OS thread the way the systems language
// this module is distilled from does; a goroutine id is the closest
// available analogue of "the calling thread's identity" and is used by
// tcache to key its per-goroutine cache entries.
//
// There is no supported API for this in the standard library. The
// implementation parses the header line of a captured stack trace, which
// is the long-standing community idiom for obtaining this value without
// cgo or assembly.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns the id of the calling goroutine. The format of
// runtime.Stack's header line ("goroutine 123 [running]:") is not part of
// the Go compatibility promise; Current falls back to 0 (a value no real
// goroutine uses) if parsing ever fails, rather than panicking.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return 0
	}

	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
