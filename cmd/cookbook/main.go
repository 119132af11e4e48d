// Package main provides the entry point for the cookbook CLI.
package main

import (
	"os"

	"github.com/angus-g/cosima-cookbook/cmd/cookbook/cmd"

	// register the built-in netCDF classic reader
	_ "github.com/angus-g/cosima-cookbook/internal/dataset/netcdf"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
