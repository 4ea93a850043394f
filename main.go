package main

import (
	"os"

	"github.com/matthieuc/gpiolink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
