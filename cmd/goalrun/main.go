package main

import (
	"os"

	"github.com/embabel/goalrun/cmd/goalrun/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
