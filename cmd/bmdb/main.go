// Package main provides the entry point for the bmdb CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/bmdb/cmd/bmdb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
