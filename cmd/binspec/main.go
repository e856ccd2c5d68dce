// Command binspec fits binary-star models to observed spectra.
//
// Usage:
//
//	binspec [command] [flags]
//
// Examples:
//
//	binspec fit 131216001101059 --config binspec.yaml
//	binspec fit --ids batch.txt --workers 8
//	binspec grid 131216001101059
//	binspec results --run 0190f0c2-...
package main

import (
	"os"

	"github.com/cwbudde/algo-binspec/cmd/binspec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
