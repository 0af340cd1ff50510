// Package main is the entry point for the clipserve application.
package main

import (
	"os"

	"github.com/clipserve/clipserve/cmd/clipserve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
