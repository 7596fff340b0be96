//go:build wasip1

package main

import (
	"unsafe"

	"github.com/Nokodoko/string-sum/internal/abi"
	"github.com/Nokodoko/string-sum/stringsum"
)

//go:wasmimport string_sum sum_request
func _sumRequest(a, b *uint64) int32

//go:wasmimport string_sum sum_response
func _sumResponse(status int32, ptr unsafe.Pointer, size uint32)

func main() {
	var a, b uint64
	for _sumRequest(&a, &b) == abi.RequestReady {
		s, err := stringsum.SumAsString(a, b)
		if err != nil {
			_sumResponse(abi.StatusOverflow, nil, 0)
			continue
		}
		_sumResponse(abi.StatusOK, unsafe.Pointer(unsafe.StringData(s)), uint32(len(s)))
	}
}
