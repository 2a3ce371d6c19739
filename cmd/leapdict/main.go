// Package main is the leapdict command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdict/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
