package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/cli/output"
	"github.com/yndnr/quicksave-go/internal/core/domain"
)

// TreeCommand returns the tree command.
func TreeCommand() *cli.Command {
	return &cli.Command{
		Name:      "tree",
		Usage:     "Show the process set rooted at a pid",
		ArgsUsage: "<pid>",
		Action: withEnv(func(c *cli.Context, e *env) error {
			pids, err := parsePids(c)
			if err != nil {
				return err
			}
			set, err := e.svc.ResolveProcessTree(e.ctx, pids[0])
			if err != nil {
				return err
			}
			return e.render(processList(set))
		}),
	}
}

type processList domain.ProcessSet

func (l processList) Table(bool) *output.Table {
	t := output.NewTable("pid", "role")
	for i, pid := range l {
		role := "descendant"
		if i == 0 {
			role = "leader"
		}
		t.AddRow(pid.String(), role)
	}
	return t
}

// CheckCommand returns the check command.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Run the compatibility precheck over process trees",
		ArgsUsage: "<pid>...",
		Action: withEnv(func(c *cli.Context, e *env) error {
			pids, err := parsePids(c)
			if err != nil {
				return err
			}
			set, err := e.svc.ResolveProcessTree(e.ctx, pids[0])
			if err != nil {
				return err
			}
			set = domain.NewProcessSet(set.Leader(), append(set.Descendants(), pids[1:]...)...)

			report, verdict := e.svc.CheckCompatibility(e.ctx, set)
			view := newCheckView(set, report, verdict)
			if e.format != output.FormatTable {
				return e.render(view)
			}
			e.out.Verdict(verdict)
			e.out.Info("display: %s  gpu: %t  ipc: %d  denylisted: %t", view.Display, view.GPU, view.IPC, view.Denylisted)
			e.out.Info("")
			return e.render(view)
		}),
	}
}
