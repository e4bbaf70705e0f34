// Package main is the entry point for the quackwell server and its admin
// commands.
package main

import (
	"os"

	"github.com/aussiebroadwan/quackwell/internal/auth/app"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = app.BuildVersion

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
