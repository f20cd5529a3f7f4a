package main

import (
	"os"

	"github.com/trogers1052/trade-ledger/cmd/ledger/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
