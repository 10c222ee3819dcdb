package proc

import (
	"context"
	"strings"

	"github.com/prometheus/procfs"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// Environment variables that reveal a graphical display dependency.
const (
	envX11     = "DISPLAY="
	envWayland = "WAYLAND_DISPLAY"
)

// fd target prefixes counted as inter-process channels.
var ipcPrefixes = []string{"socket:", "pipe:"}

// DisplayEvidence is what the environment block says about displays.
type DisplayEvidence struct {
	X11     bool
	Wayland bool
}

// DescriptorEvidence is what the fd table says about devices and channels.
type DescriptorEvidence struct {
	GPU bool
	IPC int
}

// Sample holds the evidence collected for one pid. A nil field means the
// probe produced no evidence (process gone, access denied).
type Sample struct {
	Pid         domain.ProcessID
	Display     *DisplayEvidence
	Descriptors *DescriptorEvidence
	Cmdline     *string
}

// Prechecker samples a process set through procfs.
type Prechecker struct {
	fs         procfs.FS
	denylist   *Denylist
	gpuMarkers []string
}

// PrecheckOption configures a Prechecker.
type PrecheckOption func(*Prechecker)

// WithDenylist sets the command line denylist.
func WithDenylist(d *Denylist) PrecheckOption {
	return func(p *Prechecker) {
		p.denylist = d
	}
}

// WithGPUMarkers sets the fd target substrings that indicate GPU use.
func WithGPUMarkers(markers []string) PrecheckOption {
	return func(p *Prechecker) {
		p.gpuMarkers = markers
	}
}

// NewPrechecker creates a Prechecker over fs. Without options it uses an
// empty denylist and the dri/nvidia GPU markers.
func NewPrechecker(fs procfs.FS, opts ...PrecheckOption) *Prechecker {
	p := &Prechecker{
		fs:         fs,
		gpuMarkers: []string{"dri", "nvidia"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check samples every pid in set once and aggregates the evidence. It
// never fails; missing evidence is reported as no risk.
func (p *Prechecker) Check(ctx context.Context, set domain.ProcessSet) *domain.CompatibilityReport {
	log := logger.L(ctx)
	samples := make([]Sample, 0, len(set))
	for _, pid := range set {
		s := p.Sample(pid)
		if s.Display == nil && s.Descriptors == nil && s.Cmdline == nil {
			log.Debug("no evidence for process", "pid", int(pid))
		}
		samples = append(samples, s)
	}

	report := Aggregate(samples, p.denylist)
	log.Debug("compatibility sampled",
		"processes", len(set),
		"x11", report.X11,
		"wayland", report.Wayland,
		"gpu", report.GPU,
		"ipc", report.IPC,
		"denylisted", report.Denylisted,
	)
	return report
}

// Sample runs the three probes against pid.
func (p *Prechecker) Sample(pid domain.ProcessID) Sample {
	s := Sample{Pid: pid}
	proc, err := p.fs.Proc(int(pid))
	if err != nil {
		return s
	}
	s.Display = probeEnviron(proc)
	s.Descriptors = probeDescriptors(proc, p.gpuMarkers)
	s.Cmdline = probeCmdline(proc)
	return s
}

func probeEnviron(proc procfs.Proc) *DisplayEvidence {
	env, err := proc.Environ()
	if err != nil {
		return nil
	}
	ev := &DisplayEvidence{}
	for _, item := range env {
		if strings.HasPrefix(item, envX11) {
			ev.X11 = true
		}
		if strings.HasPrefix(item, envWayland) {
			ev.Wayland = true
		}
	}
	return ev
}

func probeDescriptors(proc procfs.Proc, gpuMarkers []string) *DescriptorEvidence {
	targets, err := proc.FileDescriptorTargets()
	if err != nil {
		return nil
	}
	ev := &DescriptorEvidence{}
	for _, target := range targets {
		for _, marker := range gpuMarkers {
			if marker != "" && strings.Contains(target, marker) {
				ev.GPU = true
				break
			}
		}
		for _, prefix := range ipcPrefixes {
			if strings.Contains(target, prefix) {
				ev.IPC++
				break
			}
		}
	}
	return ev
}

// probeCmdline returns the command line with its NUL separators
// replaced by spaces.
func probeCmdline(proc procfs.Proc) *string {
	args, err := proc.CmdLine()
	if err != nil {
		return nil
	}
	line := strings.Join(args, " ")
	return &line
}

// Aggregate folds samples into a report: flags are OR'd, channel counts
// summed, and one command line is kept per sample, empty when the
// probe produced nothing.
func Aggregate(samples []Sample, denylist *Denylist) *domain.CompatibilityReport {
	report := &domain.CompatibilityReport{
		Cmdlines: make([]string, 0, len(samples)),
	}
	for _, s := range samples {
		if s.Display != nil {
			report.X11 = report.X11 || s.Display.X11
			report.Wayland = report.Wayland || s.Display.Wayland
		}
		if s.Descriptors != nil {
			report.GPU = report.GPU || s.Descriptors.GPU
			report.IPC += s.Descriptors.IPC
		}

		line := ""
		if s.Cmdline != nil {
			line = *s.Cmdline
		}
		if _, ok := denylist.Match(line); ok {
			report.Denylisted = true
		}
		report.Cmdlines = append(report.Cmdlines, line)
	}
	return report
}
