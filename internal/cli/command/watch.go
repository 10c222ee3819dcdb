package command

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/quicksave-go/internal/config"
	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/infra/confloader"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Report artifact changes in the snapshot home until interrupted",
		Action: withEnv(runWatch),
	}
}

func runWatch(c *cli.Context, e *env) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(e.log))
	if err != nil {
		return err
	}
	defer w.Stop()

	home := e.svc.Home()
	if err := w.WatchDir(home); err != nil {
		return err
	}
	cfgPath, _ := filepath.Abs(e.configPath)
	if _, err := os.Stat(cfgPath); err == nil {
		if err := w.Watch(cfgPath); err != nil {
			return err
		}
	}

	events := make(chan confloader.Event, 32)
	w.OnChange(func(ev confloader.Event) {
		select {
		case events <- ev:
		default:
			e.log.Warn("watch event dropped", "path", ev.Path, "op", ev.Op)
		}
	})
	w.StartAsync()
	e.out.Info("watching %s (interrupt to stop)", home)

	verbose := c.Bool("verbose")
	for {
		select {
		case <-e.ctx.Done():
			return nil
		case ev := <-events:
			switch {
			case filepath.Clean(ev.Path) == cfgPath:
				if !verbose {
					reloadLogLevel(e, cfgPath)
				}
			case isArtifactPath(ev.Path):
				e.out.Info("%s  %-6s  %s", time.Now().Format("15:04:05"), strings.ToLower(ev.Op), filepath.Base(ev.Path))
			}
		}
	}
}

func isArtifactPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, domain.ArtifactExt) || strings.HasSuffix(base, domain.ArtifactExt+domain.BackupExt)
}

// reloadLogLevel applies log.level from a changed config file. Other
// settings take effect on the next command.
func reloadLogLevel(e *env, path string) {
	cfg := config.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		e.log.Warn("config reload failed", "path", path, "error", err)
		return
	}
	if !logger.ValidLevel(cfg.Log.Level) || cfg.Log.Level == logger.GetLevel() {
		return
	}
	logger.SetLevel(cfg.Log.Level)
	e.log.Info("log level changed", "level", cfg.Log.Level)
}
