package main

import (
	"os"

	"github.com/alehatsman/claude-autoapprove/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
