package continuum_test

import (
	"fmt"

	"github.com/cwbudde/algo-binspec/continuum"
)

func ExampleNormalize() {
	x := make([]float64, 200)
	y := make([]float64, 200)
	ye := make([]float64, 200)
	for i := range x {
		x[i] = float64(i)
		y[i] = 2 + 0.01*x[i]
		ye[i] = 0.01
	}
	y[50] += 1
	y[120] -= 1

	rej, _ := continuum.NewRejection(&continuum.SigmaClip{Lower: 3, Upper: 3}, nil)
	res, err := continuum.Normalize(x, y, ye, continuum.WithRejection(rej))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("rejected=%d fit[50]=%.3f\n", res.Rejected, res.Fit[50])

	// Output:
	// rejected=2 fit[50]=2.500
}
