// Package main provides the entry point for the rift-host CLI.
package main

import (
	"fmt"
	"os"

	"github.com/riftlabs/rift-host/cmd/rift-host/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
