// Package main provides the pdfdeck companion CLI.
package main

import (
	"os"

	"github.com/pdfdeck/pdfdeck/cmd/pdfdeck/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
