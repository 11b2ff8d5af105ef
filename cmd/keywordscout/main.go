// Package main provides the entry point for the keywordscout CLI.
package main

import (
	"os"

	"github.com/keywordscout/keywordscout/cmd/keywordscout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
