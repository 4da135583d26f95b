// Package main is the entry point of the block indexer CLI.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/cmd/indexer/cmd"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}
