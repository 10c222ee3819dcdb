package criu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

const (
	// DefaultKillGrace is the delay between SIGTERM and SIGKILL.
	DefaultKillGrace = 5 * time.Second

	// outputTail is how much combined output is kept for diagnostics.
	outputTail = 4 << 10

	// pipeDrain bounds how long Wait keeps copying output after exit.
	pipeDrain = 2 * time.Second
)

// Invocation is one run of the primitive.
type Invocation struct {
	// Args is the full argument vector, binary first.
	Args []string
	// Dir is the working directory of the child.
	Dir string
	// Stdin defaults to /dev/null.
	Stdin io.Reader
	// Stdout and Stderr receive a copy of the child's output when set.
	Stdout io.Writer
	Stderr io.Writer
	// Terminal runs Args under the terminal wrapper in a new session.
	Terminal bool
}

// Execution describes a finished invocation.
type Execution struct {
	Args     []string
	Pid      int
	ExitCode int
	Output   string
	Elapsed  time.Duration
	Canceled bool
}

// Runner spawns the primitive in its own process group and converts
// context cancellation into a group kill.
type Runner struct {
	wrapper string
	grace   time.Duration
	logger  logger.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTerminalWrapper sets the program used for Terminal invocations.
// An empty wrapper runs Terminal invocations unwrapped in a new session.
func WithTerminalWrapper(wrapper string) RunnerOption {
	return func(r *Runner) {
		r.wrapper = wrapper
	}
}

// WithKillGrace sets the delay between SIGTERM and SIGKILL.
func WithKillGrace(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		grace:  DefaultKillGrace,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes inv and blocks until the child exits.
//
// If ctx is canceled while waiting, the whole process group receives
// SIGTERM, then SIGKILL after the grace period, and Run returns
// ErrCanceled once the child is reaped. A non-zero exit returns
// ErrPrimitiveFailed and a spawn error ErrPrimitiveSpawn. The Execution
// is non-nil whenever the child was started.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Execution, error) {
	if len(inv.Args) == 0 {
		return nil, domain.ErrPrimitiveSpawn.WithDetails("empty argument vector")
	}

	argv := inv.Args
	attr := &syscall.SysProcAttr{Setpgid: true}
	if inv.Terminal {
		if r.wrapper != "" {
			argv = WrapTerminal(r.wrapper, inv.Args)
		}
		attr = &syscall.SysProcAttr{Setsid: true}
	}

	tail := &tailBuffer{limit: outputTail}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Stdin = inv.Stdin
	cmd.Stdout = teeWriter(tail, inv.Stdout)
	cmd.Stderr = teeWriter(tail, inv.Stderr)
	cmd.SysProcAttr = attr
	cmd.WaitDelay = pipeDrain

	log := logger.L(ctx).With("cmd", strings.Join(argv, " "))
	log.Debug("starting primitive")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, domain.ErrPrimitiveSpawn.WithDetails(argv[0]).WithCause(err)
	}

	exe := &Execution{Args: argv, Pid: cmd.Process.Pid}
	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		exe.Canceled = true
		log.Warn("interrupt received, terminating primitive process group", "pgid", exe.Pid)
		waitErr = r.killGroup(exe.Pid, waitCh)
	}

	exe.Elapsed = time.Since(start)
	exe.Output = tail.String()
	if cmd.ProcessState != nil {
		exe.ExitCode = cmd.ProcessState.ExitCode()
	}

	if exe.Canceled {
		return exe, domain.ErrCanceled.WithDetails(fmt.Sprintf("%s interrupted after %s", argv[0], exe.Elapsed.Round(time.Millisecond)))
	}

	if waitErr != nil && !(errors.Is(waitErr, exec.ErrWaitDelay) && exe.ExitCode == 0) {
		details := fmt.Sprintf("%s exited with code %d", argv[0], exe.ExitCode)
		if out := strings.TrimSpace(exe.Output); out != "" {
			details += ": " + out
		}
		log.Debug("primitive failed", "exit_code", exe.ExitCode, "elapsed", exe.Elapsed)
		return exe, domain.ErrPrimitiveFailed.WithDetails(details).WithCause(waitErr)
	}

	log.Debug("primitive finished", "elapsed", exe.Elapsed)
	return exe, nil
}

// killGroup sends SIGTERM to the group, escalates to SIGKILL after the
// grace period and waits for the child to be reaped.
func (r *Runner) killGroup(pgid int, waitCh <-chan error) error {
	signalGroup(pgid, unix.SIGTERM)

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		// Helpers may outlive the leader.
		signalGroup(pgid, unix.SIGKILL)
		return err
	case <-timer.C:
		r.logger.Warn("process group ignored SIGTERM, sending SIGKILL", "pgid", pgid, "grace", r.grace)
		signalGroup(pgid, unix.SIGKILL)
		return <-waitCh
	}
}

func signalGroup(pgid int, sig unix.Signal) {
	if pgid <= 0 {
		return
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		logger.Warn("failed to signal process group", "pgid", pgid, "signal", sig.String(), "error", err)
	}
}

// Terminate sends SIGTERM to a single process, ignoring a missing one.
func Terminate(pid domain.ProcessID) error {
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(int(pid), unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func teeWriter(tail *tailBuffer, w io.Writer) io.Writer {
	if w == nil {
		return tail
	}
	return io.MultiWriter(tail, w)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
