package synth_test

import (
	"fmt"

	"github.com/cwbudde/algo-binspec/synth"
)

func ExampleLeakyReLU() {
	for _, z := range []float64{-2, 0, 3} {
		fmt.Printf("%.2f ", synth.LeakyReLU(z))
	}
	fmt.Println()

	// Output:
	// -0.02 0.00 3.00
}
