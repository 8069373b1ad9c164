package main

import (
	"log"
	"os"

	cli "github.com/urfave/cli/v2"
)

var (
	Error = log.New(os.Stderr, "Error: ", 0)
)

func main() {
	app := cli.NewApp()

	app.Name = "richer-demo"
	app.Usage = "demonstration of hierarchical progress tracking"
	app.HideHelpCommand = true

	app.Commands = []*cli.Command{
		cmdDemo,
		cmdWorkers,
		cmdWorker,
	}

	if err := app.Run(os.Args); err != nil {
		Error.Fatalln(err)
	}
}
