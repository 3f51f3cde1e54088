package main

import (
	"os"

	"github.com/moltagent/moltagent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
