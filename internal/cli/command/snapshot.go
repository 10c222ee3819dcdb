package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/cli/output"
	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/core/service"
)

// DumpCommand returns the dump command.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Checkpoint a process tree into a new artifact",
		ArgsUsage: "<pid>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   "Prefix for the artifact name",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Select the target by command name instead of pid",
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Run the compatibility precheck first",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Dump even when the precheck reports a high risk",
			},
		},
		Action: withEnv(runDump),
	}
}

func runDump(c *cli.Context, e *env) error {
	pids, err := targetPids(c, e)
	if err != nil {
		return err
	}
	set, err := e.svc.ResolveProcessTree(e.ctx, pids[0])
	if err != nil {
		return err
	}
	set = domain.NewProcessSet(set.Leader(), append(set.Descendants(), pids[1:]...)...)

	req := &service.DumpRequest{Processes: set, Label: c.String("label")}
	if c.Bool("check") {
		_, verdict := e.svc.CheckCompatibility(e.ctx, set)
		e.out.Verdict(verdict)
		if rejects(verdict) && !c.Bool("force") {
			return domain.ErrCompatibilityRejected.WithDetails(fmt.Sprintf("verdict %s; pass --force to dump anyway", verdict.Level))
		}
		req.Verdict = verdict.Level
	}

	stop := e.feedback(fmt.Sprintf("dumping %d process(es) led by %s", len(set), set.Leader()), true)
	res, err := e.svc.Dump(e.ctx, req)
	stop()
	return e.report(res, err)
}

// rejects reports whether a verdict stops a dump unless forced.
func rejects(v domain.Verdict) bool {
	return v.Blocking() || v.Level == domain.VerdictHighRisk
}

// targetPids returns the pids named on the command line, or those whose
// command name matches --name.
func targetPids(c *cli.Context, e *env) ([]domain.ProcessID, error) {
	if name := c.String("name"); name != "" {
		if c.NArg() > 0 {
			return nil, fmt.Errorf("--name and pid arguments are mutually exclusive")
		}
		pids, err := e.svc.FindByName(e.ctx, name)
		if err != nil {
			return nil, err
		}
		if len(pids) == 0 {
			return nil, domain.ErrProcessNotFound.WithDetails("no process named " + name)
		}
		return pids[:1], nil
	}
	return parsePids(c)
}

func parsePids(c *cli.Context) ([]domain.ProcessID, error) {
	if c.NArg() == 0 {
		return nil, domain.ErrEmptyProcessSet.WithDetails("at least one pid is required")
	}
	pids := make([]domain.ProcessID, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		pid, err := domain.ParseProcessID(arg)
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// feedback starts a spinner on a terminal. With packing set, the first
// codec progress report replaces the spinner with a byte counter. The
// returned func stops whichever is showing.
func (e *env) feedback(message string, packing bool) func() {
	if e.format != output.FormatTable || !output.IsTerminal(e.stderr) {
		return func() {}
	}
	e.spin = output.NewSpinner(e.stderr, message)
	e.spin.Start()
	if packing {
		e.progress = output.NewProgressBar(e.stderr, "packing")
	}
	return func() {
		if e.spin != nil {
			e.spin.Stop()
			e.spin = nil
		}
		if e.progress != nil && e.packed {
			e.progress.Finish()
		}
		e.progress, e.packed = nil, false
	}
}

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore an artifact; it is consumed on success",
		ArgsUsage: "<artifact>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Verify the artifact with a disposable restore first",
			},
		},
		Action: withEnv(runRestore),
	}
}

func runRestore(c *cli.Context, e *env) error {
	ref, err := artifactArg(c)
	if err != nil {
		return err
	}
	if c.Bool("verify") {
		res, err := e.svc.Verify(e.ctx, ref)
		if err != nil {
			return e.report(res, err)
		}
		if e.format == output.FormatTable {
			e.out.Success("verified %s", ref)
		}
	}
	// The restored tree owns the terminal; no spinner.
	res, err := e.svc.Restore(e.ctx, ref)
	return e.report(res, err)
}

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check that an artifact restores, without keeping the result",
		ArgsUsage: "<artifact>",
		Action:    withEnv(runVerify),
	}
}

func runVerify(c *cli.Context, e *env) error {
	ref, err := artifactArg(c)
	if err != nil {
		return err
	}
	stop := e.feedback("verifying "+ref, false)
	res, err := e.svc.Verify(e.ctx, ref)
	stop()
	return e.report(res, err)
}

func artifactArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one artifact", c.Command.Name)
	}
	return c.Args().First(), nil
}
