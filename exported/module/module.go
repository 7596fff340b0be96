//go:build wasip1

package main

import (
	"unsafe"

	"github.com/Nokodoko/string-sum/stringsum"
	"github.com/Nokodoko/string-sum/internal/abi"
)

// result keeps the last returned string reachable until the host has read it.
var result string

//go:wasmexport sum_as_string
func sumAsString(a, b uint64) uint64 {
	s, err := stringsum.SumAsString(a, b)
	if err != nil {
		result = ""
		return 0
	}
	result = s
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.StringData(result))))
	return abi.Pack(ptr, uint32(len(result)))
}

func main() {}
