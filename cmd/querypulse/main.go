// main is the entry point for the querypulse CLI.
package main

import (
	"fmt"
	"os"

	"github.com/querypulse/querypulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
