// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/wrenfield/gosh/syntax"
)

// stage is one running Command of a Pipeline: either a real forked/exec'd
// process (cmd/pid set) or something that never became a process at all — a
// builtin running in a goroutine inside the shell, or a synthetic failure
// (command-not-found, a bad redirect) resolved entirely in the parent.
// Builtins don't get their own address space in this Go port: a pipeline
// stage that is a builtin runs as a goroutine reading/writing the same pipe
// ends a forked process would have used, which is the idiomatic Go way to
// give a mid-pipeline stage concurrent, non-blocking I/O without the
// relaunch-the-whole-binary trick a real fork would otherwise require. The
// cost is that such a stage cannot be stopped by ^Z or targeted by
// Killpg — an accepted simplification, recorded in DESIGN.md.
type stage struct {
	idx      int
	pid      int // 0 unless this stage is a real process
	cmd      *exec.Cmd
	statusCh chan int // non-nil for a builtin goroutine stage
	status   int      // pre-computed for a synthetic stage (statusCh == nil, pid == 0)
}

// runPipeline is the Executor (EXEC, §4.4): it realizes a Pipeline as one or
// more cooperating processes/goroutines, waits for (or backgrounds) them,
// and returns the pipeline's exit status with §4.4 step 8's negation already
// applied (on both the fast and the general path), so Run need not apply it.
func (r *Runner) runPipeline(pl *syntax.Pipeline) (int, error) {
	if len(pl.Commands) == 1 && !pl.Background {
		cmd := pl.Commands[0]
		if len(cmd.Argv) > 0 && isBuiltin(cmd.Argv[0]) {
			status, err := r.runFastPath(cmd)
			if err != nil {
				return 0, err
			}
			if pl.Negate {
				status = negate(status)
			}
			return status, nil
		}
	}
	status, err := r.runGeneral(pl)
	if err != nil {
		return status, err
	}
	if pl.Negate {
		status = negate(status)
	}
	return status, nil
}

// runFastPath implements §4.4's "Fast path — single builtin, foreground":
// the builtin runs in the shell process itself, with its own redirections
// opened and handed to it directly rather than mutated into the shell's own
// fd 0/1 and restored afterwards — the Go-idiomatic equivalent of "save and
// restore fds" (SPEC_FULL.md resolution 2), since gosh's builtins already
// take explicit io handles instead of assuming fd 0/1.
func (r *Runner) runFastPath(cmd syntax.Command) (int, error) {
	// A redirect onto fd 0 is still opened here, so a bad path (e.g. `cd <
	// /nonexistent`) is diagnosed the same way it would be for an external
	// command, even though no builtin ever reads from it.
	stdout := r.Stdout
	var toClose []*os.File
	for _, rd := range cmd.Redirects {
		f, err := openRedirect(rd)
		if err != nil {
			fmt.Fprintf(r.Stderr, "%s: %v\n", rd.Path, err)
			return 1, nil
		}
		toClose = append(toClose, f)
		if rd.TargetFD != 0 {
			stdout = f
		}
	}
	defer func() {
		for _, f := range toClose {
			f.Close()
		}
	}()
	if len(cmd.Argv) == 0 {
		// Pure redirection with no program: a no-op success (§3 Command
		// invariant).
		return 0, nil
	}
	return runBuiltin(r, cmd.Argv, stdout, r.Stderr), nil
}

// runGeneral implements §4.4's "General path": build N-1 pipes, launch every
// command, assign process groups, hand off the terminal, and either
// background or wait.
func (r *Runner) runGeneral(pl *syntax.Pipeline) (int, error) {
	n := len(pl.Commands)
	pipes := make([][2]*os.File, n-1)
	for i := range pipes {
		pr, pw, err := os.Pipe()
		if err != nil {
			return 0, fmt.Errorf("gosh: pipe: %w", err)
		}
		pipes[i] = [2]*os.File{pr, pw}
	}

	var (
		stages  []stage
		toClose []*os.File
		pgid    int
		argv0s  = make([]string, 0, n)
	)

	for i, cmd := range pl.Commands {
		argv0 := "(redir)"
		if len(cmd.Argv) > 0 {
			argv0 = cmd.Argv[0]
		}
		argv0s = append(argv0s, argv0)

		stdin, stdout := r.Stdin, r.Stdout
		if i > 0 {
			stdin = pipes[i-1][0]
		}
		if i < n-1 {
			stdout = pipes[i][1]
		}
		// The parent's copies of this stage's pipe ends are closed once
		// every stage is launched, so every pipe fd ends up closed in the
		// parent (§4.4 step d and §5 "every pipe fd opened in the parent
		// must be closed after forking all children").
		if i > 0 {
			toClose = append(toClose, pipes[i-1][0])
		}
		if i < n-1 {
			toClose = append(toClose, pipes[i][1])
		}

		var opened []*os.File
		var openErr error
		for _, rd := range cmd.Redirects {
			f, err := openRedirect(rd)
			if err != nil {
				openErr = fmt.Errorf("%s: %w", rd.Path, err)
				break
			}
			opened = append(opened, f)
			if rd.TargetFD == 0 {
				stdin = f
			} else {
				stdout = f
			}
		}
		toClose = append(toClose, opened...)

		if openErr != nil {
			fmt.Fprintln(r.Stderr, openErr)
			stages = append(stages, stage{idx: i, status: 1})
			continue
		}

		if len(cmd.Argv) == 0 {
			stages = append(stages, stage{idx: i, status: 0})
			continue
		}

		if isBuiltin(argv0) {
			stages = append(stages, r.launchBuiltinStage(i, stdout, cmd.Argv))
			continue
		}

		st, err := r.launchExternalStage(i, cmd.Argv, stdin, stdout, &pgid)
		if err != nil {
			fmt.Fprintln(r.Stderr, err)
		}
		stages = append(stages, st)
	}

	for _, f := range toClose {
		f.Close()
	}

	var pids []int
	pidIdx := make(map[int]int, len(stages))
	for _, st := range stages {
		if st.pid != 0 {
			pids = append(pids, st.pid)
			pidIdx[st.pid] = st.idx
		}
	}

	r.Vars.LastBG = pgid
	display := strings.Join(argv0s, " | ")

	if pl.Background {
		if pgid != 0 {
			r.jobs.Add(pgid, pids, display, true)
		}
		return 0, nil
	}

	statuses := make([]int, n)
	for _, st := range stages {
		if st.statusCh != nil {
			statuses[st.idx] = <-st.statusCh
		} else if st.pid == 0 {
			statuses[st.idx] = st.status
		}
	}

	var waitResults map[int]unix.WaitStatus
	if len(pids) > 0 {
		waitResults = r.sig.waitForeground(pids)
	}

	stopped := false
	for pid, ws := range waitResults {
		idx := pidIdx[pid]
		switch {
		case ws.Exited():
			statuses[idx] = ws.ExitStatus()
		case ws.Signaled():
			statuses[idx] = 128 + int(ws.Signal())
		case ws.Stopped():
			stopped = true
		}
	}

	if stopped && pgid != 0 {
		j := r.jobs.Add(pgid, pids, display, false)
		j.State = Stopped
		fmt.Fprintf(r.Stdout, "[%d] Stopped %s\n", j.ID, j.Display)
		r.reclaimTerminal()
		return 0, nil
	}

	r.reclaimTerminal()
	return statuses[n-1], nil
}

// reclaimTerminal implements §4.4 step 7: hand the controlling terminal
// back to the shell's own process group once a foreground pipeline returns
// or stops.
func (r *Runner) reclaimTerminal() {
	if !r.Interactive {
		return
	}
	if err := tcsetpgrp(r.terminalFd, r.shellPgid); err != nil {
		r.log.Debugw("tcsetpgrp reclaim failed", "error", err)
	}
}

// launchBuiltinStage runs argv as a builtin in a goroutine wired to stdout,
// standing in for "If argv[0] is a builtin, run it in the child and exit
// with its status" (§4.4 step 2f) without an actual fork. Its stdin pipe end
// is closed alongside every other unused fd in runGeneral's cleanup pass
// instead of being handed in, since no builtin reads from it. That cleanup
// pass also closes the parent's stdout file right after launch, so the
// goroutine writes through a duplicate of it, which it closes when done.
func (r *Runner) launchBuiltinStage(idx int, stdout *os.File, argv []string) stage {
	ch := make(chan int, 1)
	fd, err := unix.Dup(int(stdout.Fd()))
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %v\n", argv[0], err)
		ch <- 1
		return stage{idx: idx, statusCh: ch}
	}
	out := os.NewFile(uintptr(fd), stdout.Name())
	go func() {
		status := runBuiltin(r, argv, out, r.Stderr)
		out.Close()
		ch <- status
	}()
	return stage{idx: idx, statusCh: ch}
}

// launchExternalStage resolves argv[0] against PATH (§4.4 step 2g), forks
// and execs it with its process group assigned per §4.4 step 2b, and for
// the pipeline's first command, hands it the terminal per step 2c/3 when
// the pipeline is an interactive foreground one. *pgid is set from the
// first command's pid and reused for every later command in the pipeline.
func (r *Runner) launchExternalStage(idx int, argv []string, stdin, stdout *os.File, pgid *int) (stage, error) {
	path, err := lookPath(r.Vars, argv[0])
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: command not found\n", argv[0])
		return stage{idx: idx, status: 127}, nil
	}

	cmd := &exec.Cmd{
		Path:   path,
		Args:   argv,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: r.Stderr,
		Env:    r.Vars.Environ(),
	}
	if *pgid == 0 {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
	} else {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: *pgid}
	}

	if err := cmd.Start(); err != nil {
		return stage{idx: idx, status: 1}, fmt.Errorf("gosh: %s: %w", argv[0], err)
	}

	pid := cmd.Process.Pid
	if *pgid == 0 {
		*pgid = pid
		// Close the fork/setpgid race (§4.4 step 3): the child already
		// called setpgid(0, 0) via SysProcAttr before exec, but the
		// parent repeats the equivalent call so the group exists from
		// the parent's point of view regardless of scheduling order.
		_ = unix.Setpgid(pid, *pgid)
		if r.Interactive {
			if err := tcsetpgrp(r.terminalFd, *pgid); err != nil {
				r.log.Debugw("tcsetpgrp handoff failed", "error", err)
			}
		}
	}
	r.log.Debugw("forked pipeline stage", "argv0", argv[0], "pid", pid, "pgid", *pgid)
	return stage{idx: idx, pid: pid, cmd: cmd}, nil
}

// openRedirect opens one Redirection per §3's exact flags/mode table.
func openRedirect(rd syntax.Redirection) (*os.File, error) {
	switch rd.Mode {
	case syntax.RedirRead:
		return os.OpenFile(rd.Path, os.O_RDONLY, 0)
	case syntax.RedirTruncate:
		return os.OpenFile(rd.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	case syntax.RedirAppend:
		return os.OpenFile(rd.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	default:
		return nil, fmt.Errorf("unknown redirection mode %d", rd.Mode)
	}
}

// lookPath implements §4.4 step 2g's PATH search: a name containing '/' is
// used as-is, otherwise every directory of $PATH (or "/usr/bin:/bin" if
// unset) is searched in order for a path the process may execute, as
// reported by access(2) with X_OK.
func lookPath(vs lookuper, name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	path, ok := vs.Lookup("PATH")
	if !ok || path == "" {
		path = "/usr/bin:/bin"
	}
	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := dir + "/" + name
		if unix.Access(candidate, unix.X_OK) == nil {
			return candidate, nil
		}
	}
	return "", &execNotFoundError{name: name}
}

// lookuper is the subset of *vars.Store's read API lookPath needs; kept as
// an interface purely so exec_test.go can exercise PATH search without
// constructing a full Store.
type lookuper interface {
	Lookup(name string) (string, bool)
}

type execNotFoundError struct{ name string }

func (e *execNotFoundError) Error() string { return e.name + ": not found" }
