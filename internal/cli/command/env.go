package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/cli/output"
	"github.com/yndnr/quicksave-go/internal/config"
	"github.com/yndnr/quicksave-go/internal/core/service"
	"github.com/yndnr/quicksave-go/internal/criu"
	"github.com/yndnr/quicksave-go/internal/infra/confloader"
	"github.com/yndnr/quicksave-go/internal/infra/shutdown"
	"github.com/yndnr/quicksave-go/internal/proc"
	"github.com/yndnr/quicksave-go/internal/storage/archive"
	"github.com/yndnr/quicksave-go/internal/storage/catalog"
	"github.com/yndnr/quicksave-go/internal/storage/snapshot"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
	"github.com/yndnr/quicksave-go/internal/telemetry/metric"
)

// closeTimeout bounds the shutdown hooks run after every command.
const closeTimeout = 10 * time.Second

// env is everything one command invocation needs.
type env struct {
	ctx        context.Context
	cfg        *config.QuicksaveConfig
	configPath string
	log        logger.Logger
	svc        *service.SnapshotService
	metrics    *metric.Registry
	out        *output.Printer
	warn       *output.Printer
	stdout     io.Writer
	stderr     io.Writer
	format     output.Format
	wide       bool
	spin       *output.Spinner
	progress   *output.ProgressBar
	packed     bool

	shutdown *shutdown.Handler
	stop     context.CancelFunc
}

// withEnv wraps an action with environment setup and teardown.
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		runErr := action(c, e)
		if closeErr := e.close(); closeErr != nil && runErr == nil {
			runErr = closeErr
		}
		return runErr
	}
}

// loadConfig layers defaults, the config file, QUICKSAVE_* variables and
// global flags, then validates the result.
func loadConfig(flags *GlobalFlags) (*config.QuicksaveConfig, string, error) {
	cfg := config.Default()

	path := flags.Config
	opt := confloader.WithConfigFile(path)
	if path == "" {
		path = config.DefaultConfigPath()
		opt = confloader.WithOptionalConfigFile(path)
	}
	if err := confloader.NewLoader(opt).Load(cfg); err != nil {
		return nil, "", err
	}

	if flags.Home != "" {
		cfg.Snapshot.Home = flags.Home
	}
	if flags.Verbose {
		cfg.Log.Level = "debug"
	}
	if flags.NoCatalog {
		cfg.Catalog.Enabled = false
	}
	if err := config.Verify(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newEnv(c *cli.Context) (*env, error) {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return nil, err
	}
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:        cfg,
		configPath: path,
		metrics:    metric.NewRegistry(),
		out:        output.NewPrinter(c.App.Writer, flags.NoColor),
		stdout:     c.App.Writer,
		stderr:     c.App.ErrWriter,
		format:     format,
		wide:       flags.Wide,
		shutdown:   shutdown.NewHandler(closeTimeout),
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	e.warn = output.NewPrinter(e.stderr, flags.NoColor)
	e.ctx, e.stop = e.shutdown.WithSignals(c.Context)

	if err := e.setupLogger(flags.Verbose); err != nil {
		e.stop()
		return nil, err
	}
	if err := e.setupService(); err != nil {
		e.close()
		return nil, err
	}

	restored, err := e.svc.Recover(e.ctx)
	for _, path := range restored {
		e.warn.Warn("recovered %s left behind by an interrupted restore", path)
	}
	if err != nil {
		e.warn.Warn("backup recovery incomplete: %v", err)
	}
	return e, nil
}

// setupLogger sends entries to the dated log file and, with --verbose,
// to stderr as well.
func (e *env) setupLogger(verbose bool) error {
	cfg := logger.Config{
		Level:  e.cfg.Log.Level,
		Format: e.cfg.Log.Format,
		Output: io.Discard,
	}
	if verbose {
		cfg.Output = e.stderr
	}
	if e.cfg.Log.Dir != "" {
		f, err := logger.OpenDailyFile(e.cfg.Log.Dir, time.Now())
		if err != nil {
			return err
		}
		cfg.File = f
		e.shutdown.OnShutdown(func(context.Context) error { return f.Close() })
	}

	l, err := logger.New(cfg)
	if err != nil {
		return err
	}
	logger.SetDefault(l)
	e.log = l
	return nil
}

func (e *env) setupService() error {
	cfg := e.cfg

	store, err := snapshot.NewManager(snapshot.Config{Dir: cfg.Snapshot.Home, WorkDir: cfg.Snapshot.WorkDir}, e.log)
	if err != nil {
		return err
	}
	codec, err := archive.New(archive.Config{
		Compressors: cfg.Archive.Compressors,
		ZstdLevel:   cfg.Archive.ZstdLevel,
		LZ4Level:    cfg.Archive.LZ4Level,
	}, archive.WithLogger(e.log), archive.WithProgress(e.observeProgress))
	if err != nil {
		return err
	}

	var cat *catalog.Catalog
	if cfg.Catalog.Enabled {
		cat, err = catalog.Open(cfg.Catalog.Dir, e.log)
		if err != nil {
			e.warn.Warn("catalog unavailable, continuing without metadata: %v", err)
			cat = nil
		} else {
			e.shutdown.OnShutdown(func(context.Context) error { return cat.Close() })
		}
	}

	deps := service.Deps{
		Builder: &criu.Builder{
			Binary:    cfg.Criu.Binary,
			Privilege: criu.DetectPrivilege(),
			LogLevel:  cfg.Criu.LogLevel,
			ExtraArgs: cfg.Criu.ExtraArgs,
		},
		Codec:   codec,
		Store:   store,
		Catalog: cat,
		Metrics: e.metrics,
		Logger:  e.log,
	}

	wrapper := ""
	if cfg.Criu.UseTerminalWrapper {
		wrapper = cfg.Criu.TerminalWrapper
	}
	deps.Runner = criu.NewRunner(
		criu.WithTerminalWrapper(wrapper),
		criu.WithKillGrace(cfg.Criu.KillGrace),
		criu.WithRunnerLogger(e.log),
	)

	if fs, err := proc.OpenFS(""); err != nil {
		e.log.Warn("process introspection unavailable", "error", err)
	} else {
		denylist, err := proc.NewDenylist(cfg.Compat.Denylist)
		if err != nil {
			return fmt.Errorf("compat.denylist: %w", err)
		}
		deps.Resolver = proc.NewResolver(fs)
		deps.Checker = proc.NewPrechecker(fs, proc.WithDenylist(denylist), proc.WithGPUMarkers(cfg.Compat.GPUMarkers))
	}

	if cfg.Metrics.Textfile != "" {
		e.shutdown.OnShutdown(func(context.Context) error {
			return e.metrics.WriteTextfile(cfg.Metrics.Textfile)
		})
	}

	e.svc, err = service.NewSnapshotService(deps, service.Options{
		Terminal:     cfg.Criu.UseTerminalWrapper,
		PidfileName:  cfg.Criu.PidfileName,
		IPCThreshold: cfg.Compat.IPCThreshold,
		Keep:         cfg.Snapshot.Keep,
		Stdout:       e.stdout,
		Stderr:       e.stderr,
	})
	return err
}

func (e *env) observeProgress(written int64) {
	if e.progress == nil {
		return
	}
	if e.spin != nil {
		e.spin.Stop()
		e.spin = nil
	}
	e.packed = true
	e.progress.Observe(written)
}

// close runs the shutdown hooks: textfile, catalog, log file.
func (e *env) close() error {
	select {
	case sig := <-e.shutdown.Signals():
		e.log.Warn("interrupted", "signal", sig.String())
	default:
	}
	e.stop()
	return e.shutdown.Shutdown()
}
