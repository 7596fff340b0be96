package imported

import (
	"context"
	"testing"
)

var res string

func BenchmarkSumAsString(b *testing.B) {
	m := newTestModule(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, _ = m.SumAsString(ctx, 2, 3)
	}
}
