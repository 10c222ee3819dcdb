package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "quicksave",
		Usage:                "Checkpoint and restore running process trees",
		Version:              buildinfo.String(),
		HideVersion:          true,
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			DumpCommand(),
			RestoreCommand(),
			VerifyCommand(),
			ListCommand(),
			DeleteCommand(),
			InspectCommand(),
			PruneCommand(),
			TreeCommand(),
			CheckCommand(),
			WatchCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.quicksave/config.yaml when present)",
			EnvVars: []string{"QUICKSAVE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "home",
			Usage: "Snapshot home directory, overrides snapshot.home",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log at debug level to stderr",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable coloured output",
		},
		&cli.BoolFlag{
			Name:  "no-catalog",
			Usage: "Do not open the artifact catalog",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config    string
	Home      string
	Output    string
	Wide      bool
	Verbose   bool
	NoColor   bool
	NoCatalog bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:    c.String("config"),
		Home:      c.String("home"),
		Output:    c.String("output"),
		Wide:      c.Bool("wide"),
		Verbose:   c.Bool("verbose"),
		NoColor:   c.Bool("no-color"),
		NoCatalog: c.Bool("no-catalog"),
	}
}
