package criu

import (
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

// Privilege is the caller's privilege level as seen by the primitive.
type Privilege int

const (
	// Unprivileged callers run the primitive in --unprivileged mode.
	Unprivileged Privilege = iota
	// Elevated callers (effective uid 0) get the full flag set.
	Elevated
)

func (p Privilege) String() string {
	if p == Elevated {
		return "elevated"
	}
	return "unprivileged"
}

// DetectPrivilege reports Elevated when the effective uid is 0.
func DetectPrivilege() Privilege {
	if unix.Geteuid() == 0 {
		return Elevated
	}
	return Unprivileged
}

// Primitive flags.
const (
	FlagUnprivileged   = "--unprivileged"
	FlagTCPEstablished = "--tcp-established"
	FlagTrackMem       = "--track-mem"
	FlagShellJob       = "--shell-job"
	FlagExtUnixSk      = "--ext-unix-sk"
	FlagPty            = "--pty"
	FlagDetach         = "-d"
	FlagPidfile        = "--pidfile"
	FlagImagesDir      = "-D"
	FlagTree           = "-t"
	FlagLogFile        = "-o"
)

// elevatedOnly holds the flags that need kernel capabilities an
// unprivileged caller does not have.
var elevatedOnly = map[string]bool{
	FlagTCPEstablished: true,
	FlagTrackMem:       true,
}

// Build returns the argument vector [binary, args...] adjusted for priv.
// For unprivileged callers --unprivileged is inserted right after the
// binary unless already present, duplicates of it are collapsed, and
// elevated-only flags are dropped. Elevated callers get args unchanged.
func Build(binary string, priv Privilege, args ...string) []string {
	cmd := make([]string, 0, len(args)+2)
	cmd = append(cmd, binary)
	if priv == Elevated {
		return append(cmd, args...)
	}

	present := false
	for _, a := range args {
		if a == FlagUnprivileged {
			present = true
			break
		}
	}
	if !present {
		cmd = append(cmd, FlagUnprivileged)
	}

	seen := false
	for _, a := range args {
		if elevatedOnly[a] {
			continue
		}
		if a == FlagUnprivileged {
			if seen {
				continue
			}
			seen = true
		}
		cmd = append(cmd, a)
	}
	return cmd
}

// Builder produces complete invocations for each pipeline phase.
type Builder struct {
	Binary    string
	Privilege Privilege
	// LogLevel is passed as -v<n> when non-negative.
	LogLevel  int
	ExtraArgs []string
}

// NewBuilder returns a Builder for binary at priv with log level 2.
func NewBuilder(binary string, priv Privilege) *Builder {
	return &Builder{Binary: binary, Privilege: priv, LogLevel: 2}
}

// Build applies the privilege rules to a subcommand and its flags, then
// appends the log level, the per-phase log file and any extra args.
func (b *Builder) Build(subcommand string, args ...string) []string {
	full := make([]string, 0, len(args)+len(b.ExtraArgs)+4)
	full = append(full, subcommand)
	full = append(full, args...)
	if b.LogLevel >= 0 {
		full = append(full, "-v"+strconv.Itoa(b.LogLevel))
	}
	full = append(full, FlagLogFile, subcommand+".log")
	full = append(full, b.ExtraArgs...)
	return Build(b.Binary, b.Privilege, full...)
}

// PreDump builds the memory-tracking warm-up pass.
func (b *Builder) PreDump(dir string, leader domain.ProcessID) []string {
	return b.Build("pre-dump",
		FlagTree, leader.String(),
		FlagImagesDir, dir,
		FlagTrackMem, FlagShellJob,
	)
}

// Dump builds the final checkpoint pass. Connection preserving flags are
// dropped for unprivileged callers by Build.
func (b *Builder) Dump(dir string, leader domain.ProcessID) []string {
	return b.Build("dump",
		FlagTree, leader.String(),
		FlagImagesDir, dir,
		FlagShellJob, FlagTCPEstablished, FlagExtUnixSk, FlagPty,
	)
}

// Restore builds a foreground restore.
func (b *Builder) Restore(dir string) []string {
	return b.Build("restore",
		FlagImagesDir, dir,
		FlagShellJob, FlagTCPEstablished, FlagExtUnixSk, FlagPty,
	)
}

// DetachedRestore builds a backgrounded restore that records the resumed
// leader's pid in pidfile.
func (b *Builder) DetachedRestore(dir, pidfile string) []string {
	return b.Build("restore",
		FlagImagesDir, dir,
		FlagShellJob, FlagExtUnixSk,
		FlagDetach, FlagPidfile, pidfile,
	)
}

// TwoPhase reports whether dumps should run a pre-dump pass first.
func (b *Builder) TwoPhase() bool {
	return b.Privilege == Elevated
}
