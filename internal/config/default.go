package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultHomeName     = ".quicksave"
	DefaultConfigName   = "config.yaml"
	DefaultCatalogName  = ".catalog"
	DefaultLogDirName   = "logs"
	DefaultCriuBinary   = "criu"
	DefaultCriuLogLevel = 2
	DefaultWrapper      = "script"
	DefaultPidfileName  = "restored.pid"
	DefaultKillGrace    = 5 * time.Second
	DefaultZstdLevel    = 19
	DefaultLZ4Level     = 9
	DefaultIPCThreshold = 30
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// DefaultDenylist names applications known to resist checkpoint/restore.
var DefaultDenylist = []string{"chrome", "firefox", "vscode", "pycharm", "idea", "jetbrains"}

// DefaultGPUMarkers are fd target substrings that indicate GPU device use.
var DefaultGPUMarkers = []string{"dri", "nvidia"}

// DefaultCompressors is the compressor preference order.
var DefaultCompressors = []string{"zstd", "lz4"}

// DefaultHome returns ~/.quicksave, or .quicksave when the home
// directory cannot be determined.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultHomeName
	}
	return filepath.Join(home, DefaultHomeName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultHome(), DefaultConfigName)
}

// Default returns the default configuration. The catalog dir is left
// empty and the log dir relative; Verify resolves both against the home.
func Default() *QuicksaveConfig {
	return &QuicksaveConfig{
		Snapshot: SnapshotSection{
			Home: DefaultHome(),
		},
		Criu: CriuSection{
			Binary:             DefaultCriuBinary,
			LogLevel:           DefaultCriuLogLevel,
			TerminalWrapper:    DefaultWrapper,
			UseTerminalWrapper: true,
			PidfileName:        DefaultPidfileName,
			KillGrace:          DefaultKillGrace,
		},
		Archive: ArchiveSection{
			Compressors: append([]string(nil), DefaultCompressors...),
			ZstdLevel:   DefaultZstdLevel,
			LZ4Level:    DefaultLZ4Level,
		},
		Compat: CompatSection{
			Denylist:     append([]string(nil), DefaultDenylist...),
			IPCThreshold: DefaultIPCThreshold,
			GPUMarkers:   append([]string(nil), DefaultGPUMarkers...),
		},
		Catalog: CatalogSection{
			Enabled: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Dir:    DefaultLogDirName,
		},
	}
}
