package main

import (
	"fmt"
	"os"

	"github.com/yndnr/quicksave-go/internal/cli/command"
)

func main() {
	if err := run(os.Args); err != nil {
		if !command.IsReported(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	app := command.App()
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	return app.Run(args)
}
