// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// isBuiltin reports whether name is one of the five builtins §4.7 names.
func isBuiltin(name string) bool {
	switch name {
	case "cd", "export", "jobs", "fg", "bg":
		return true
	default:
		return false
	}
}

// runBuiltin dispatches argv[0] to its implementation and returns the
// builtin's status. stdout/stderr are whatever the Executor wired for this
// stage (the shell's own, a pipe end, or a redirected file); none of gosh's
// builtins read stdin, matching mysh_complete.c's builtin table. stdout and
// stderr only need an io.Writer surface: unlike an external command, a
// builtin never needs a real fd to dup into a child.
func runBuiltin(r *Runner, argv []string, stdout, stderr io.Writer) int {
	switch argv[0] {
	case "cd":
		return builtinCd(r, argv, stderr)
	case "export":
		return builtinExport(r, argv)
	case "jobs":
		return builtinJobs(r, stdout)
	case "fg":
		return builtinFg(r, argv, stderr)
	case "bg":
		return builtinBg(r, argv, stderr)
	default:
		panic("interp: runBuiltin called with non-builtin " + argv[0])
	}
}

// builtinCd implements §4.7's `cd [dir]`, carrying forward
// mysh_complete.c's builtin_cd distinction between a missing $HOME and a
// failing chdir as two separate diagnostics (SPEC_FULL.md's "Supplemented
// features").
func builtinCd(r *Runner, argv []string, stderr io.Writer) int {
	var dir string
	if len(argv) > 1 {
		dir = argv[1]
	} else {
		dir = r.Vars.Get("HOME")
		if dir == "" {
			fmt.Fprintln(stderr, "cd: HOME not set")
			return 1
		}
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(stderr, "cd: %v\n", err)
		return 1
	}
	return 0
}

// builtinExport implements §4.7's `export NAME[=VALUE] ...`. A bare NAME
// that isn't already a known variable is silently ignored, per spec.md's
// stated Open Question resolution.
func builtinExport(r *Runner, argv []string) int {
	for _, arg := range argv[1:] {
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			r.Vars.Set(arg[:eq], arg[eq+1:], true)
		} else {
			r.Vars.Export(arg)
		}
	}
	return 0
}

// builtinJobs implements §4.7's `jobs`: print "[id] <state> <display>" for
// every live job.
func builtinJobs(r *Runner, stdout io.Writer) int {
	for _, j := range r.jobs.List() {
		fmt.Fprintf(stdout, "[%d] %s    %s\n", j.ID, j.State, j.Display)
	}
	return 0
}

// selectJob resolves fg/bg's optional %id argument (SPEC_FULL.md resolution
//4: %id selection is implemented, not left as spec.md's Open Question),
// falling back to the most recently added job.
func selectJob(r *Runner, argv []string) (*Job, error) {
	if len(argv) > 1 {
		arg := strings.TrimPrefix(argv[1], "%")
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: no such job", argv[0], argv[1])
		}
		j := r.jobs.ByID(id)
		if j == nil {
			return nil, fmt.Errorf("%s: %%%d: no such job", argv[0], id)
		}
		return j, nil
	}
	j := r.jobs.Last()
	if j == nil {
		return nil, fmt.Errorf("%s: no jobs", argv[0])
	}
	return j, nil
}

// builtinFg implements §4.7's `fg [%id]`: give the job the terminal, send
// SIGCONT, wait for it to stop or finish, then reclaim the terminal.
func builtinFg(r *Runner, argv []string, stderr io.Writer) int {
	j, err := selectJob(r, argv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if r.Interactive {
		_ = tcsetpgrp(r.terminalFd, j.Pgid)
	}
	_ = unix.Kill(-j.Pgid, syscall.SIGCONT)
	j.State = Running

	results := r.sig.waitForeground(j.pids)
	r.reclaimTerminal()

	status := 0
	stopped := false
	for _, ws := range results {
		switch {
		case ws.Exited():
			status = ws.ExitStatus()
		case ws.Signaled():
			status = 128 + int(ws.Signal())
		case ws.Stopped():
			stopped = true
		}
	}
	if stopped {
		j.State = Stopped
	}
	return status
}

// builtinBg implements §4.7's `bg [%id]`: resume a Stopped job in the
// background by sending SIGCONT without taking the terminal or waiting.
func builtinBg(r *Runner, argv []string, stderr io.Writer) int {
	j, err := selectJob(r, argv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if j.State == Stopped {
		_ = unix.Kill(-j.Pgid, syscall.SIGCONT)
		j.State = Running
	}
	return 0
}
