package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/cli/output"
	"github.com/yndnr/quicksave-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command. It needs no configuration.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return err
			}
			info := buildinfo.Get()
			if format == output.FormatTable {
				t := output.NewTable("field", "value")
				t.AddRow("version", info.Version)
				t.AddRow("commit", info.Commit)
				t.AddRow("built", info.BuildTime)
				t.AddRow("go", info.GoVersion)
				t.AddRow("platform", info.Platform)
				return t.RenderWithOptions(c.App.Writer, true)
			}
			return output.NewFormatter(format, false).Format(c.App.Writer, info)
		},
	}
}
