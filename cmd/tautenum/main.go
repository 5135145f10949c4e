// Command tautenum runs the tautomer/protonation-state standardization and
// enumeration pipeline over a molecule file, per spec.md §6's CLI contract.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tautenum:", err)
		os.Exit(1)
	}
}
