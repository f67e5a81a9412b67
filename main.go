package main

import (
	"os"

	"github.com/ImShyMike/hcb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
