package main

import (
	"os"

	"github.com/martinemde/deskagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
