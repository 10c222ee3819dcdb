package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

var knownCompressors = map[string]bool{"zstd": true, "lz4": true}

// Verify validates the configuration, resolves paths derived from the
// snapshot home and creates the home directory if it is missing.
func Verify(cfg *QuicksaveConfig) error {
	if err := verifySnapshot(&cfg.Snapshot); err != nil {
		return err
	}
	if err := verifyCriu(&cfg.Criu); err != nil {
		return err
	}
	if err := verifyArchive(&cfg.Archive); err != nil {
		return err
	}
	if err := verifyCompat(&cfg.Compat); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log, cfg.Snapshot.Home); err != nil {
		return err
	}
	if cfg.Catalog.Enabled && cfg.Catalog.Dir == "" {
		cfg.Catalog.Dir = filepath.Join(cfg.Snapshot.Home, DefaultCatalogName)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domain.ErrConfigInvalid.WithDetails(fmt.Sprintf(format, args...))
}

func verifySnapshot(cfg *SnapshotSection) error {
	if cfg.Home == "" {
		return invalid("snapshot.home is required")
	}
	home, err := expandHome(cfg.Home)
	if err != nil {
		return invalid("snapshot.home: %v", err)
	}
	cfg.Home = home

	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return domain.ErrStorage.WithDetails("cannot create snapshot home").WithCause(err)
	}
	if cfg.Keep < 0 {
		return invalid("snapshot.keep must be >= 0")
	}
	if cfg.WorkDir != "" {
		wd, err := expandHome(cfg.WorkDir)
		if err != nil {
			return invalid("snapshot.work_dir: %v", err)
		}
		cfg.WorkDir = wd
	}
	return nil
}

func verifyCriu(cfg *CriuSection) error {
	if cfg.Binary == "" {
		return invalid("criu.binary is required")
	}
	if cfg.LogLevel < 0 || cfg.LogLevel > 4 {
		return invalid("criu.log_level must be between 0 and 4, got %d", cfg.LogLevel)
	}
	if cfg.UseTerminalWrapper && cfg.TerminalWrapper == "" {
		return invalid("criu.terminal_wrapper is required when criu.use_terminal_wrapper is set")
	}
	if cfg.PidfileName == "" || strings.ContainsRune(cfg.PidfileName, filepath.Separator) {
		return invalid("criu.pidfile_name must be a bare file name")
	}
	if cfg.KillGrace < 0 {
		return invalid("criu.kill_grace must not be negative")
	}
	return nil
}

func verifyArchive(cfg *ArchiveSection) error {
	if len(cfg.Compressors) == 0 {
		return invalid("archive.compressors must name at least one compressor")
	}
	for _, c := range cfg.Compressors {
		if !knownCompressors[c] {
			return invalid("archive.compressors: unknown compressor %q", c)
		}
	}
	if cfg.ZstdLevel < 1 || cfg.ZstdLevel > 22 {
		return invalid("archive.zstd_level must be between 1 and 22")
	}
	if cfg.LZ4Level < 0 || cfg.LZ4Level > 9 {
		return invalid("archive.lz4_level must be between 0 and 9")
	}
	return nil
}

func verifyCompat(cfg *CompatSection) error {
	if cfg.IPCThreshold < 0 {
		return invalid("compat.ipc_threshold must be >= 0")
	}
	for _, p := range cfg.Denylist {
		if strings.TrimSpace(p) == "" {
			return invalid("compat.denylist must not contain empty entries")
		}
	}
	return nil
}

func verifyLog(cfg *LogSection, home string) error {
	if !logger.ValidLevel(cfg.Level) {
		return invalid("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		return invalid("log.format %q is not one of text, json", cfg.Format)
	}
	if cfg.Dir == "" {
		return nil
	}
	dir, err := expandHome(cfg.Dir)
	if err != nil {
		return invalid("log.dir: %v", err)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(home, dir)
	}
	cfg.Dir = dir
	return nil
}

// expandHome resolves a leading "~" and returns an absolute path.
func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
