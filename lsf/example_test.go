package lsf_test

import (
	"fmt"

	"github.com/cwbudde/algo-binspec/lsf"
)

func ExampleKernel() {
	k, err := lsf.Kernel(4, 2)
	if err != nil {
		fmt.Println(err)
		return
	}
	mid := len(k) / 2
	fmt.Printf("taps=%d half-max ratio=%.3f\n", len(k), k[mid+2]/k[mid])

	// Output:
	// taps=15 half-max ratio=0.500
}
