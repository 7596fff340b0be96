//go:build !ignore_test_helpers

package main

/*
#include <stdlib.h>
*/
import "C"

// Wrappers to allow testing C-exported functions from Go tests without cgo in test files

// SumAsStringForTest calls sumAsString and converts both returned C strings,
// freeing them afterwards.
func SumAsStringForTest(a, b uint64) (result string, errMsg string) {
	var cResult *C.char
	cErr := sumAsString(C.ulonglong(a), C.ulonglong(b), &cResult)
	if cErr != nil {
		errMsg = C.GoString(cErr)
		freeString(cErr)
	}
	if cResult != nil {
		result = C.GoString(cResult)
		freeString(cResult)
	}
	return result, errMsg
}

func SumAsStringNilResultForTest(a, b uint64) string {
	cErr := sumAsString(C.ulonglong(a), C.ulonglong(b), nil)
	if cErr == nil {
		return ""
	}
	defer freeString(cErr)
	return C.GoString(cErr)
}

func FreeNilStringForTest() {
	freeString(nil)
}
