// Package stringsum adds two unsigned integers and returns the sum as a decimal
// string. It is the implementation behind every exported form of the string_sum
// module: the wasm guests, the C shared library and the CLI all call into it.
package stringsum

import (
	"context"
	"math/bits"
	"strconv"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
)

// ErrOverflow is returned when a + b does not fit into 64 bits.
var ErrOverflow = cerrors.New("overflow")

// SumAsString returns the decimal representation of a + b.
func SumAsString(a, b uint64) (string, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return "", cerrors.Errorf("%d + %d: %w", a, b, ErrOverflow)
	}
	return strconv.FormatUint(sum, 10), nil
}

// Adder is implemented by every backend that can compute sum-as-string.
type Adder interface {
	SumAsString(ctx context.Context, a, b uint64) (string, error)
}

// AdderFunc adapts a plain function to Adder.
type AdderFunc func(ctx context.Context, a, b uint64) (string, error)

func (f AdderFunc) SumAsString(ctx context.Context, a, b uint64) (string, error) {
	return f(ctx, a, b)
}

// Native computes the sum in-process.
var Native Adder = AdderFunc(func(_ context.Context, a, b uint64) (string, error) {
	return SumAsString(a, b)
})
