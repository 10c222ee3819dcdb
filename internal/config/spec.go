package config

import "time"

// QuicksaveConfig is the root configuration for quicksave.
type QuicksaveConfig struct {
	Snapshot SnapshotSection `koanf:"snapshot" yaml:"snapshot"`
	Criu     CriuSection     `koanf:"criu" yaml:"criu"`
	Archive  ArchiveSection  `koanf:"archive" yaml:"archive"`
	Compat   CompatSection   `koanf:"compat" yaml:"compat"`
	Catalog  CatalogSection  `koanf:"catalog" yaml:"catalog"`
	Metrics  MetricsSection  `koanf:"metrics" yaml:"metrics"`
	Log      LogSection      `koanf:"log" yaml:"log"`
}

// SnapshotSection configures where artifacts live.
type SnapshotSection struct {
	// Home is the snapshot home directory holding .qsnap artifacts.
	Home string `koanf:"home" yaml:"home"`
	// Keep is the number of newest artifacts to retain after a dump (0 = all).
	Keep int `koanf:"keep" yaml:"keep"`
	// WorkDir is the parent of per-call working directories ("" = OS temp dir).
	WorkDir string `koanf:"work_dir" yaml:"work_dir"`
}

// CriuSection configures the checkpoint primitive.
type CriuSection struct {
	Binary string `koanf:"binary" yaml:"binary"`
	// LogLevel is passed as -v<n> (0-4).
	LogLevel  int      `koanf:"log_level" yaml:"log_level"`
	ExtraArgs []string `koanf:"extra_args" yaml:"extra_args"`
	// TerminalWrapper runs a foreground restore under a pseudo terminal.
	TerminalWrapper    string `koanf:"terminal_wrapper" yaml:"terminal_wrapper"`
	UseTerminalWrapper bool   `koanf:"use_terminal_wrapper" yaml:"use_terminal_wrapper"`
	PidfileName        string `koanf:"pidfile_name" yaml:"pidfile_name"`
	// KillGrace is how long a canceled process group gets between SIGTERM and SIGKILL.
	KillGrace time.Duration `koanf:"kill_grace" yaml:"kill_grace"`
}

// ArchiveSection configures the archive codec.
type ArchiveSection struct {
	// Compressors is the preference order probed at startup.
	Compressors []string `koanf:"compressors" yaml:"compressors"`
	ZstdLevel   int      `koanf:"zstd_level" yaml:"zstd_level"`
	LZ4Level    int      `koanf:"lz4_level" yaml:"lz4_level"`
}

// CompatSection configures the compatibility precheck.
type CompatSection struct {
	Denylist     []string `koanf:"denylist" yaml:"denylist"`
	IPCThreshold int      `koanf:"ipc_threshold" yaml:"ipc_threshold"`
	GPUMarkers   []string `koanf:"gpu_markers" yaml:"gpu_markers"`
}

// CatalogSection configures the artifact metadata catalog.
type CatalogSection struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Dir     string `koanf:"dir" yaml:"dir"`
}

// MetricsSection configures metrics export.
type MetricsSection struct {
	// Textfile is written after each command when set.
	Textfile string `koanf:"textfile" yaml:"textfile"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	// Dir receives one <YYYY-MM-DD>.log per day ("" disables the file).
	Dir string `koanf:"dir" yaml:"dir"`
}
