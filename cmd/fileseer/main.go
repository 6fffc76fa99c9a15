// Package main provides the entry point for the fileseer CLI.
package main

import (
	"os"

	"github.com/fileseer/fileseer/cmd/fileseer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
