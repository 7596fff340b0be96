// Command main builds the string_sum C shared library:
//
//	go build -buildmode=c-shared -o libstringsum.so ./bindings/main
//
// Python loads it with ctypes in place of the string_sum extension module.
package main

/*
#include <stdlib.h> // For free
*/
import "C"
import (
	"unsafe"

	"github.com/Nokodoko/string-sum/stringsum"
)

// sumAsString adds a and b. On success *result receives the decimal string
// and NULL is returned. Otherwise the error message is returned and *result is
// left NULL. Release both with freeString.
//
//export sumAsString
func sumAsString(a, b C.ulonglong, result **C.char) *C.char {
	if result != nil {
		*result = nil
	}
	s, err := stringsum.SumAsString(uint64(a), uint64(b))
	if err != nil {
		return C.CString(err.Error())
	}
	if result == nil {
		return C.CString("result pointer is NULL")
	}
	*result = C.CString(s)
	return nil
}

//export freeString
func freeString(cString *C.char) {
	if cString != nil {
		C.free(unsafe.Pointer(cString))
	}
}

func main() {
	// main function is required for building a shared library, but can be empty
}
