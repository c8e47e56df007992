// Command ddp is the command-line front end for the interpreter: it scans,
// compiles, and executes ddp source files.
package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-ddp/cmd/ddp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
