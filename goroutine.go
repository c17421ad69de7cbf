package aop

import (
	"bytes"
	"runtime"
)

var stackHeader = []byte("goroutine ")

// goroutineID reads the current goroutine's id from its stack header
// ("goroutine 18 [running]:"). Resolution chains are keyed by it.
func goroutineID() string {
	var buf [64]byte
	header := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], stackHeader)
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}
	return string(header)
}
