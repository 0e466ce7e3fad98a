package main

import (
	"os"

	"github.com/jmcrae/wrangler/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
