// Package main provides the mdc-archivist CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/cmd/mdc-archivist/commands"
)

var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
