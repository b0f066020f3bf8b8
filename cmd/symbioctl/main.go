// Package main is the entry point for the symbio operator CLI.
package main

import (
	"os"

	"symbio/cmd/symbioctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
