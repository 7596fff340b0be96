// Package abi holds the names and encodings shared by the wasm guests and their
// hosts. It is compiled into both sides, so it must stay free of host-only imports.
package abi

// ModuleName is the name of the host module imported by the guest in imported
// mode.
const ModuleName = "string_sum"

const (
	// ExportSumAsString is the function exported by the reactor guest.
	ExportSumAsString = "sum_as_string"
	// ExportInitialize initializes a reactor built with -buildmode=c-shared.
	ExportInitialize = "_initialize"
	// ExportStart runs main of a command module.
	ExportStart = "_start"

	// ImportSumRequest blocks until the host has a pair to add.
	ImportSumRequest = "sum_request"
	// ImportSumResponse hands the result back to the host.
	ImportSumResponse = "sum_response"
)

// Values returned by sum_request.
const (
	RequestStop  int32 = 0
	RequestReady int32 = 1
)

// Status passed to sum_response.
const (
	StatusOK       int32 = 0
	StatusOverflow int32 = 1
)

// Pack encodes the location of a string in guest memory into a single i64
// result. A zero value signals overflow; results are never empty strings.
func Pack(ptr, size uint32) uint64 {
	return uint64(ptr)<<32 | uint64(size)
}

// Unpack reverses Pack.
func Unpack(v uint64) (ptr, size uint32) {
	return uint32(v >> 32), uint32(v)
}
