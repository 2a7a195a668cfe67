package main

import (
	"context"
	"os"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/opio"
)

var (
	GitCommit = ""
	GitDate   = ""
)

func main() {
	// sub-commands set up their individual interrupt lifecycles, which can block on the given interrupt as needed
	ctx := opio.WithInterruptBlocker(context.Background())
	app := newCli(GitCommit, GitDate)
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error("application failed", "err", err)
		os.Exit(1)
	}
}
