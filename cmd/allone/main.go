package main

import (
	"os"

	"github.com/allone-dev/allone/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
