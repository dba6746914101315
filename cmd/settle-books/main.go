// Package main is the entry point for the settle-books CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/settlement-books/cmd/settle-books/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
