package main

import (
	"os"

	"github.com/usefulness/keeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
