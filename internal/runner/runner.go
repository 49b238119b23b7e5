// Package runner executes validation cases as subprocesses under a launcher,
// enforces per-case timeouts with process-group termination, and records a
// machine-readable outcome per case.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldval/internal/logging"
	"fieldval/internal/suite"
)

// killGrace is how long a timed-out process group gets between SIGTERM and
// SIGKILL.
const killGrace = 5 * time.Second

// Config is the runner's explicit configuration. No ambient state: tests
// inject fake build dirs and binaries through here.
type Config struct {
	BuildDir   string        // directory holding case executables
	ResultsDir string        // root of the per-case result tree
	Launcher   string        // parallel launcher, e.g. "mpirun"; empty runs the bare binary
	Ranks      int           // default MPI rank count when the launcher is set
	Timeout    time.Duration // default per-case timeout; a case's own timeout wins
	Parallel   int           // max simultaneous case launches; <=1 is sequential
	DryRun     bool          // report the plan without launching
	Clean      bool          // recreate per-case result dirs before running
}

// BatchResult collects one Outcome per case, in case order.
type BatchResult struct {
	Outcomes []*Outcome
}

// Counts tallies outcomes by kind.
func (b *BatchResult) Counts() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int)
	for _, o := range b.Outcomes {
		counts[o.Kind]++
	}
	return counts
}

// AllOK reports whether every case completed with exit code zero.
func (b *BatchResult) AllOK() bool {
	for _, o := range b.Outcomes {
		if !o.OK() {
			return false
		}
	}
	return true
}

// Runner executes batches of cases.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// New returns a Runner for the given configuration.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg, log: logging.New("runner")}
}

// Run executes every case and returns one outcome each. A case failure never
// aborts the batch; only a canceled context or an unusable results directory
// does.
func (r *Runner) Run(ctx context.Context, cases []*suite.Case) (*BatchResult, error) {
	if r.cfg.DryRun {
		return r.plan(cases), nil
	}

	if err := os.MkdirAll(r.cfg.ResultsDir, 0755); err != nil {
		return nil, fmt.Errorf("prepare results dir: %w", err)
	}

	outcomes := make([]*Outcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	limit := r.cfg.Parallel
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, c := range cases {
		g.Go(func() error {
			outcomes[i] = r.runCase(gctx, c)
			return nil
		})
	}
	_ = g.Wait() // per-case failures live in the outcomes

	if err := ctx.Err(); err != nil {
		return &BatchResult{Outcomes: outcomes}, err
	}
	return &BatchResult{Outcomes: outcomes}, nil
}

// plan logs what would run without touching the filesystem.
func (r *Runner) plan(cases []*suite.Case) *BatchResult {
	outcomes := make([]*Outcome, len(cases))
	for i, c := range cases {
		argv := r.argv(c)
		r.log.Info("dry-run",
			"case", c.Name,
			"command", strings.Join(argv, " "),
			"timeout", r.timeoutFor(c).String(),
			"results_dir", filepath.Join(r.cfg.ResultsDir, c.Name))
		outcomes[i] = &Outcome{Test: c.Name, Kind: OutcomeSkipped, Reason: "dry run"}
	}
	return &BatchResult{Outcomes: outcomes}
}

// runCase executes one case end to end and always produces an Outcome.
func (r *Runner) runCase(ctx context.Context, c *suite.Case) *Outcome {
	caseDir := filepath.Join(r.cfg.ResultsDir, c.Name)
	rawDir := filepath.Join(caseDir, RawDirName)

	outcome := &Outcome{Test: c.Name, Ranks: r.ranksFor(c)}

	if err := r.prepareCaseDir(caseDir, rawDir); err != nil {
		outcome.Kind = OutcomeSkipped
		outcome.Reason = err.Error()
		r.log.Error("case dir preparation failed", "case", c.Name, "error", err)
		return outcome
	}
	// From here on the result directory exists, so the outcome is always
	// persisted: no silent omissions from the summary.
	defer func() {
		if err := WriteOutcome(caseDir, outcome); err != nil {
			r.log.Error("write outcome failed", "case", c.Name, "error", err)
		}
	}()

	exe, input, err := r.resolvePaths(c)
	if err != nil {
		outcome.Kind = OutcomeSkipped
		outcome.Reason = err.Error()
		r.log.Warn("case skipped", "case", c.Name, "reason", err.Error())
		return outcome
	}

	if err := copyFile(input, filepath.Join(caseDir, InputCopyName)); err != nil {
		r.log.Warn("input copy failed", "case", c.Name, "error", err)
	}

	logFile, err := os.Create(filepath.Join(caseDir, LogFileName))
	if err != nil {
		outcome.Kind = OutcomeSkipped
		outcome.Reason = fmt.Sprintf("create log file: %v", err)
		return outcome
	}
	defer logFile.Close()

	argv := r.argvResolved(c, exe, input)
	outcome.Command = strings.Join(argv, " ")

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = rawDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcGroup(cmd)

	timeout := r.timeoutFor(c)
	start := time.Now()
	outcome.StartedAt = timestamp(start)

	r.log.Info("case started", "case", c.Name, "command", outcome.Command, "timeout", timeout.String())

	if err := cmd.Start(); err != nil {
		outcome.Kind = OutcomeSkipped
		outcome.Reason = fmt.Sprintf("launch failed: %v", err)
		r.log.Warn("case skipped", "case", c.Name, "reason", outcome.Reason)
		return outcome
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	var timedOut bool
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		r.terminate(cmd, done)
	case <-ctx.Done():
		r.terminate(cmd, done)
		waitErr = ctx.Err()
	}

	elapsed := time.Since(start)
	outcome.RuntimeSec = elapsed.Seconds()
	outcome.FinishedAt = timestamp(time.Now())

	switch {
	case timedOut:
		outcome.Kind = OutcomeTimedOut
		outcome.Reason = fmt.Sprintf("exceeded timeout %s", timeout)
		r.log.Warn("case timed out", "case", c.Name, "timeout", timeout.String())
	case errors.Is(waitErr, context.Canceled) || errors.Is(waitErr, context.DeadlineExceeded):
		outcome.Kind = OutcomeSkipped
		outcome.Reason = "batch canceled"
	case waitErr == nil:
		outcome.Kind = OutcomeCompleted
		r.log.Info("case completed", "case", c.Name, "runtime", elapsed.Round(time.Millisecond).String())
	default:
		outcome.Kind = OutcomeCrashed
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			outcome.ExitCode = ee.ExitCode()
			outcome.Signal = signalName(ee.Sys())
		} else {
			outcome.ExitCode = -1
			outcome.Reason = waitErr.Error()
		}
		r.log.Warn("case crashed", "case", c.Name, "exit_code", outcome.ExitCode, "signal", outcome.Signal)
	}

	return outcome
}

// terminate stops the whole process group: soft signal, grace period, then a
// hard kill. Waits for Wait to hand back the process.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) {
	signalGroup(cmd, true)
	select {
	case <-done:
		return
	case <-time.After(killGrace):
	}
	signalGroup(cmd, false)
	<-done
}

// prepareCaseDir recreates the per-case tree. Only this case's directory is
// touched; unrelated entries under the results root stay intact.
func (r *Runner) prepareCaseDir(caseDir, rawDir string) error {
	if r.cfg.Clean {
		if err := os.RemoveAll(caseDir); err != nil {
			return fmt.Errorf("clean case dir: %w", err)
		}
	}
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return fmt.Errorf("create case dir: %w", err)
	}
	return nil
}

// resolvePaths locates the executable and input file; either missing makes
// the case a skip, never a batch abort.
func (r *Runner) resolvePaths(c *suite.Case) (exe, input string, err error) {
	exe = filepath.Join(r.cfg.BuildDir, c.Executable)
	if _, serr := os.Stat(exe); serr != nil {
		return "", "", fmt.Errorf("executable not found: %s", exe)
	}
	input = filepath.Join(c.Dir, c.Input)
	if _, serr := os.Stat(input); serr != nil {
		return "", "", fmt.Errorf("input file not found: %s", input)
	}
	return exe, input, nil
}

func (r *Runner) ranksFor(c *suite.Case) int {
	if c.Ranks > 0 {
		return c.Ranks
	}
	if r.cfg.Ranks > 0 {
		return r.cfg.Ranks
	}
	return 1
}

func (r *Runner) timeoutFor(c *suite.Case) time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout)
	}
	if r.cfg.Timeout > 0 {
		return r.cfg.Timeout
	}
	return suite.DefaultTimeout
}

// argv builds the launch command for planning output.
func (r *Runner) argv(c *suite.Case) []string {
	return r.argvResolved(c,
		filepath.Join(r.cfg.BuildDir, c.Executable),
		filepath.Join(c.Dir, c.Input))
}

func (r *Runner) argvResolved(c *suite.Case, exe, input string) []string {
	if r.cfg.Launcher == "" {
		return []string{exe, input}
	}
	return []string{r.cfg.Launcher, "-np", strconv.Itoa(r.ranksFor(c)), exe, input}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
