package main

import (
	"os"

	"github.com/DrSkyle/rolesmith/cmd/rolesmith/commands"
)

func main() {
	os.Exit(commands.Execute())
}
