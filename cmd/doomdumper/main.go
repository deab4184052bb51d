package main

import (
	"os"

	"github.com/doomdumper/doomdumper/cmd/doomdumper/commands"
)

func main() {
	os.Exit(commands.Execute())
}
