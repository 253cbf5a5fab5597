package cmd

import (
	"github.com/hellhand/kube/internal/log"
	"github.com/urfave/cli"
)

var logger = log.New("kube")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
