// Package main provides the pushset CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/pushset/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
