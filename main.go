// Package main is the entry point for block-replay.
package main

import (
	"fmt"
	"os"

	"github.com/block-replay/block-replay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "block-replay: %v\n", err)
		os.Exit(1)
	}
}
