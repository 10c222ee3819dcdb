package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/cli/output"
)

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List artifacts in the snapshot home, oldest first",
		Action: withEnv(func(c *cli.Context, e *env) error {
			artifacts, err := e.svc.List(e.ctx)
			if err != nil {
				return err
			}
			if len(artifacts) == 0 && e.format == output.FormatTable {
				e.out.Info("no artifacts in %s", e.svc.Home())
				return nil
			}
			return e.render(artifactList(artifacts))
		}),
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete artifacts from the snapshot home",
		ArgsUsage: "<artifact>...",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if c.NArg() == 0 {
				return fmt.Errorf("delete expects at least one artifact")
			}
			for _, ref := range c.Args().Slice() {
				if err := e.svc.Delete(e.ctx, ref); err != nil {
					return err
				}
				e.out.Success("deleted %s", ref)
			}
			return nil
		}),
	}
}

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the process tree stored in an artifact",
		ArgsUsage: "<artifact>",
		Action: withEnv(func(c *cli.Context, e *env) error {
			ref, err := artifactArg(c)
			if err != nil {
				return err
			}
			ins, err := e.svc.Inspect(e.ctx, ref)
			if err != nil {
				return err
			}
			view := newInspectView(ins)
			if e.format != output.FormatTable {
				return e.render(view)
			}

			e.out.Info("artifact: %s", view.Artifact.Path)
			e.out.Info("created:  %s", formatTime(view.Artifact.CreatedAt))
			e.out.Info("size:     %s (%s)", output.HumanBytes(view.Artifact.Size), view.Codec)
			if view.LastVerified != nil {
				e.out.Info("verified: %s ok=%t", formatTime(*view.LastVerified), *view.VerifyOK)
			}
			e.out.Info("")
			return e.render(view.Tasks)
		}),
	}
}

// PruneCommand returns the prune command.
func PruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete all but the newest artifacts",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "keep",
				Aliases: []string{"k"},
				Usage:   "Number of artifacts to keep (default snapshot.keep)",
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			keep := e.cfg.Snapshot.Keep
			if c.IsSet("keep") {
				keep = c.Int("keep")
			}
			if keep < 1 {
				return fmt.Errorf("prune needs --keep >= 1 or snapshot.keep in the config")
			}
			removed, err := e.svc.Prune(e.ctx, keep)
			for _, path := range removed {
				e.out.Success("pruned %s", path)
			}
			return err
		}),
	}
}
