/*
Package main provides the CLI entry point for fwrelease.
*/
package main

import (
	"os"

	"github.com/oarkflow/fwrelease/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
