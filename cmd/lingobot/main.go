package main

import (
	"os"

	"github.com/m3rciful/lingobot/cmd/lingobot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
