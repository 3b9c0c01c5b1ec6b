package main

import (
	"os"

	"github.com/secmon-lab/gcu/pkg/controller/cmd"
)

// gcu reports failures itself, so main only sets the exit code
func main() {
	if err := cmd.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
