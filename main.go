package main

import (
	"os"

	"github.com/complygraph/complygraph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
