package conv

import (
	"fmt"
	"testing"

	"github.com/cwbudde/algo-binspec/internal/testutil"
)

func BenchmarkOverlapAddProcessSame(b *testing.B) {
	for _, kernelLen := range []int{63, 511, 4095} {
		b.Run(fmt.Sprintf("kernel=%d", kernelLen), func(b *testing.B) {
			signal := testutil.DeterministicNoise(1, 1, 1<<15)
			kernel := testutil.Ones(kernelLen)
			oa, err := NewOverlapAdd(kernel, 0)
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := oa.ProcessSame(signal); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
