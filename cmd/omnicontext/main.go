// Package main provides the entry point for the omnicontext CLI.
package main

import (
	"os"

	"github.com/omnicontext/omnicontext-core/cmd/omnicontext/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
