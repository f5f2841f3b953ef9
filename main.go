package main

import (
	"os"

	"github.com/jacokyle01/chess-lab/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
