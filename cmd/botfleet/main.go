package main

import (
	"os"

	"github.com/arven-dev/botfleet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
