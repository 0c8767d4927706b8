// Package main is the entry point for m3u-epg-checker.
package main

import (
	"os"

	"github.com/nuken/m3u-epg-checker/cmd/m3u-epg-checker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
