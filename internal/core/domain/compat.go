package domain

import "fmt"

// DefaultIPCThreshold is the socket/pipe count above which a process set is
// considered an elevated checkpoint risk.
const DefaultIPCThreshold = 30

// DisplayServer classifies the graphical display dependency of a process set.
type DisplayServer string

const (
	DisplayNone    DisplayServer = "none"
	DisplayX11     DisplayServer = "x11"
	DisplayWayland DisplayServer = "wayland"
)

// CompatibilityReport is an advisory risk assessment over a ProcessSet.
// It reflects a single sampling pass; the caller keeps go/no-go authority.
type CompatibilityReport struct {
	X11        bool     `json:"x11" yaml:"x11"`
	Wayland    bool     `json:"wayland" yaml:"wayland"`
	GPU        bool     `json:"gpu" yaml:"gpu"`
	IPC        int      `json:"ipc" yaml:"ipc"`
	Denylisted bool     `json:"denylisted" yaml:"denylisted"`
	Cmdlines   []string `json:"cmdlines" yaml:"cmdlines"`
}

// Display returns the display-server class. Wayland wins when both
// families were observed.
func (r *CompatibilityReport) Display() DisplayServer {
	switch {
	case r.Wayland:
		return DisplayWayland
	case r.X11:
		return DisplayX11
	default:
		return DisplayNone
	}
}

// VerdictLevel ranks how safe a checkpoint attempt is expected to be.
type VerdictLevel string

const (
	VerdictUnsupported         VerdictLevel = "unsupported"
	VerdictHighRisk            VerdictLevel = "high_risk"
	VerdictRisk                VerdictLevel = "risk"
	VerdictUnsupportedWindowed VerdictLevel = "unsupported_windowed"
	VerdictElevatedRisk        VerdictLevel = "elevated_risk"
	VerdictPass                VerdictLevel = "pass"
)

// Verdict is the first-match summary of a CompatibilityReport.
type Verdict struct {
	Level   VerdictLevel `json:"level" yaml:"level"`
	Message string       `json:"message" yaml:"message"`
}

// Blocking reports whether the verdict is a hard failure.
func (v Verdict) Blocking() bool {
	return v.Level == VerdictUnsupported
}

// Pass reports whether no risk was detected.
func (v Verdict) Pass() bool {
	return v.Level == VerdictPass
}

// Explain derives the verdict for r. The first matching rule wins:
// wayland, denylist, GPU, missing X11, IPC count above threshold, pass.
// A non-positive threshold falls back to DefaultIPCThreshold.
func (r *CompatibilityReport) Explain(ipcThreshold int) Verdict {
	if ipcThreshold <= 0 {
		ipcThreshold = DefaultIPCThreshold
	}
	switch {
	case r.Wayland:
		return Verdict{VerdictUnsupported, "application runs under Wayland; process snapshots are not supported"}
	case r.Denylisted:
		return Verdict{VerdictHighRisk, "detected an application known to resist snapshots (e.g. Chrome/VSCode/PyCharm)"}
	case r.GPU:
		return Verdict{VerdictRisk, "application is using the GPU; snapshot or restore may fail"}
	case !r.X11:
		return Verdict{VerdictUnsupportedWindowed, "no X11 environment detected; windowed applications cannot be snapshotted"}
	case r.IPC > ipcThreshold:
		return Verdict{VerdictElevatedRisk, fmt.Sprintf("high number of inter-process sockets/pipes (%d); snapshot compatibility risk is elevated", r.IPC)}
	default:
		return Verdict{VerdictPass, "compatibility check passed; snapshot can be attempted"}
	}
}
