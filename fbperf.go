package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cunha/fbperf/cmd"
	"github.com/cunha/fbperf/config"
	"github.com/cunha/fbperf/logger"
)

// Version is populated by build flags with the current Git tag.
var Version string

func main() {
	config.Version = Version

	app := &cli.App{
		EnableBashCompletion: true,
		Commands:             cmd.Commands(),
		Name:                 "fbperf",
		Usage:                "analyze route-performance telemetry for opportunity, degradation, and relationship shifts",
		UsageText:            "fbperf [-d] command [command options]",
		Version:              Version,
		Args:                 true,
		ExitErrHandler:       exitErrHandler,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:     "debug",
				Aliases:  []string{"d"},
				Usage:    "Run in debug mode",
				Value:    false,
				Required: false,
			},
		},
		Before: func(cCtx *cli.Context) error {
			logger.DebugMode = os.Getenv("APP_ENV") == "dev"
			if cCtx.Bool("debug") {
				logger.DebugMode = true
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log := logger.GetLogger()
		log.Fatal().Err(err).Send()
	}
}

// exitErrHandler implements cli.ExitErrHandlerFunc.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(c.App.ErrWriter, "\n[!] %+v\n", err.Error())
	cli.OsExiter(1)
}
