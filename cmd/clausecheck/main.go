// Package main provides the entry point for the clausecheck CLI.
package main

import (
	"errors"
	"os"

	"github.com/Aman-CERP/clausecheck/cmd/clausecheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrSectionsMissing) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
