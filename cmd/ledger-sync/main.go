package main

import (
	"errors"
	"os"

	"github.com/fatih/color"
)

func main() {
	a := &app{}
	if err := execute(newRootCmd(a), a); err != nil {
		if !errors.Is(err, errReported) {
			color.New(color.FgRed).Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}
