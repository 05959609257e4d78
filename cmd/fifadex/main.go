package main

import (
	"os"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/cmd/fifadex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
