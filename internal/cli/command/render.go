package command

import (
	"errors"
	"strconv"
	"time"

	"github.com/yndnr/quicksave-go/internal/cli/output"
	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/core/service"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// reportedError marks an error whose details were already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already shown to the user by the
// command that returned it.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// resultView is the machine-readable form of a pipeline result.
type resultView struct {
	Op       domain.Op        `json:"op" yaml:"op"`
	OpID     string           `json:"op_id" yaml:"op_id"`
	Outcome  domain.Outcome   `json:"outcome" yaml:"outcome"`
	Artifact *domain.Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Elapsed  string           `json:"elapsed" yaml:"elapsed"`
	Code     string           `json:"code,omitempty" yaml:"code,omitempty"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
	Output   string           `json:"output,omitempty" yaml:"output,omitempty"`
}

func newResultView(res *domain.Result) *resultView {
	v := &resultView{
		Op:       res.Op,
		OpID:     res.OpID,
		Outcome:  res.Outcome,
		Artifact: res.Artifact,
		Elapsed:  res.Elapsed.Round(time.Millisecond).String(),
		Code:     res.ReasonCode(),
		Output:   res.Output,
	}
	if res.Reason != nil {
		v.Error = res.Reason.Error()
	}
	return v
}

// report renders a pipeline result and returns err marked as reported.
func (e *env) report(res *domain.Result, err error) error {
	if res == nil {
		return err
	}
	if e.format != output.FormatTable {
		if ferr := e.formatter().Format(e.stdout, newResultView(res)); ferr != nil {
			return ferr
		}
		return reported(err)
	}

	e.out.Outcome(res)
	if res.OK() && res.Op == domain.OpDump && res.Artifact != nil {
		e.out.Info("artifact: %s (%s)", res.Artifact.Path, output.HumanBytes(res.Artifact.Size))
	}
	return reported(err)
}

func (e *env) formatter() output.Formatter {
	return output.NewFormatter(e.format, e.wide)
}

// render writes data in the selected format.
func (e *env) render(data any) error {
	return e.formatter().Format(e.stdout, data)
}

type artifactList []*domain.Artifact

func (l artifactList) Table(wide bool) *output.Table {
	t := output.NewTable("name", "label", "created", "size")
	if wide {
		t = output.NewTable("name", "label", "created", "size", "codec", "leader", "digest")
	}
	for _, a := range l {
		row := []string{a.Name, a.Label, formatTime(a.CreatedAt), output.HumanBytes(a.Size)}
		if wide {
			leader := ""
			if a.Leader > 0 {
				leader = a.Leader.String()
			}
			row = append(row, a.Codec, leader, shortDigest(a.Digest))
		}
		t.AddRow(row...)
	}
	return t
}

type taskList []taskRow

type taskRow struct {
	Pid     int `json:"pid" yaml:"pid"`
	Ppid    int `json:"ppid" yaml:"ppid"`
	Pgid    int `json:"pgid" yaml:"pgid"`
	Sid     int `json:"sid" yaml:"sid"`
	Threads int `json:"threads" yaml:"threads"`
}

func (l taskList) Table(bool) *output.Table {
	t := output.NewTable("pid", "ppid", "pgid", "sid", "threads")
	for _, r := range l {
		t.AddRow(strconv.Itoa(r.Pid), strconv.Itoa(r.Ppid), strconv.Itoa(r.Pgid), strconv.Itoa(r.Sid), strconv.Itoa(r.Threads))
	}
	return t
}

// inspectView is the machine-readable form of an inspection.
type inspectView struct {
	Artifact     *domain.Artifact `json:"artifact" yaml:"artifact"`
	Codec        string           `json:"codec" yaml:"codec"`
	Tasks        taskList         `json:"tasks" yaml:"tasks"`
	LastVerified *time.Time       `json:"last_verified,omitempty" yaml:"last_verified,omitempty"`
	VerifyOK     *bool            `json:"verify_ok,omitempty" yaml:"verify_ok,omitempty"`
}

func newInspectView(ins *service.Inspection) *inspectView {
	v := &inspectView{Artifact: ins.Artifact, Codec: ins.Codec}
	for _, task := range ins.Tasks {
		v.Tasks = append(v.Tasks, taskRow{
			Pid:     int(task.Pid),
			Ppid:    int(task.Ppid),
			Pgid:    int(task.Pgid),
			Sid:     int(task.Sid),
			Threads: task.Threads,
		})
	}
	if ins.Record != nil && ins.Record.LastVerifiedAt != nil {
		ok := ins.Record.LastVerifyOK
		v.LastVerified = ins.Record.LastVerifiedAt
		v.VerifyOK = &ok
	}
	return v
}

// checkView is the machine-readable form of a compatibility check.
type checkView struct {
	Processes  domain.ProcessSet    `json:"processes" yaml:"processes"`
	Display    domain.DisplayServer `json:"display" yaml:"display"`
	GPU        bool                 `json:"gpu" yaml:"gpu"`
	IPC        int                  `json:"ipc" yaml:"ipc"`
	Denylisted bool                 `json:"denylisted" yaml:"denylisted"`
	Verdict    domain.Verdict       `json:"verdict" yaml:"verdict"`
	Cmdlines   []string             `json:"cmdlines" yaml:"cmdlines"`
}

func newCheckView(set domain.ProcessSet, r *domain.CompatibilityReport, v domain.Verdict) *checkView {
	cmdlines := make([]string, len(r.Cmdlines))
	for i, line := range r.Cmdlines {
		cmdlines[i] = logger.RedactCmdline(line)
	}
	return &checkView{
		Processes:  set,
		Display:    r.Display(),
		GPU:        r.GPU,
		IPC:        r.IPC,
		Denylisted: r.Denylisted,
		Verdict:    v,
		Cmdlines:   cmdlines,
	}
}

func (v *checkView) Table(wide bool) *output.Table {
	t := output.NewTable("pid", "cmdline")
	for i, pid := range v.Processes {
		line := ""
		if i < len(v.Cmdlines) {
			line = v.Cmdlines[i]
		}
		if !wide && len(line) > 60 {
			line = line[:57] + "..."
		}
		t.AddRow(pid.String(), line)
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
