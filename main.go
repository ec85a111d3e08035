// Package main is the entry point for the regional analysis CLI.
package main

import (
	"fmt"
	"os"

	"github.com/bschooled/azure-regional-analysis/internal/cli"
)

func main() {
	app := cli.New()
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
