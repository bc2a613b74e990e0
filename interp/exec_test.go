// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	qt "github.com/frankban/quicktest"

	"github.com/wrenfield/gosh/syntax"
	"github.com/wrenfield/gosh/vars"
)

// newTestRunner builds a non-interactive Runner wired to real files, so
// os/exec can dup them into forked children the way it would for gosh
// itself. Non-interactive because a plain go test process has no
// controlling terminal of its own (see TestTerminalHandoff for the pty
// exception).
func newTestRunner(c *qt.C) (*Runner, func() string) {
	devNull, err := os.Open(os.DevNull)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { devNull.Close() })

	out, err := os.CreateTemp(c.TempDir(), "gosh-exec-stdout")
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { out.Close() })

	r, err := New(StdIO(devNull, out, os.Stderr))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { r.Close() })

	return r, func() string {
		data, err := os.ReadFile(out.Name())
		c.Assert(err, qt.IsNil)
		return string(data)
	}
}

func run(c *qt.C, r *Runner, line string) int {
	p := syntax.NewParser(r.Vars)
	pl, err := p.Parse(line)
	c.Assert(err, qt.IsNil)
	status, err := r.Run(pl)
	c.Assert(err, qt.IsNil)
	return status
}

func TestExecRedirectionIdempotent(t *testing.T) {
	c := qt.New(t)
	r, _ := newTestRunner(c)

	f := c.TempDir() + "/f"
	c.Assert(run(c, r, "echo hello > "+f), qt.Equals, 0)
	c.Assert(run(c, r, "echo hello > "+f), qt.Equals, 0)
	data, err := os.ReadFile(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "hello\n")

	f2 := c.TempDir() + "/g"
	c.Assert(run(c, r, "echo x >> "+f2), qt.Equals, 0)
	c.Assert(run(c, r, "echo x >> "+f2), qt.Equals, 0)
	data2, err := os.ReadFile(f2)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data2), qt.Equals, "x\nx\n")
}

func TestExecPipelineStatusIsLastStage(t *testing.T) {
	c := qt.New(t)
	r, _ := newTestRunner(c)

	c.Assert(run(c, r, "false | true"), qt.Equals, 0)
	c.Assert(run(c, r, "true | false"), qt.Equals, 1)
}

func TestExecBackgroundAnnouncesJob(t *testing.T) {
	c := qt.New(t)
	r, read := newTestRunner(c)

	status := run(c, r, "sleep 1 &")
	c.Assert(status, qt.Equals, 0)

	j := r.jobs.Last()
	c.Assert(j, qt.Not(qt.IsNil))
	c.Assert(r.Vars.LastBG, qt.Equals, j.Pgid)
	c.Assert(read(), qt.Equals, "[1] "+strconv.Itoa(j.Pgid)+"\n")

	// Don't leave a real sleeping process behind.
	waitJobGone(c, r, j.Pgid)
}

func TestExecCommandNotFound(t *testing.T) {
	c := qt.New(t)
	r, _ := newTestRunner(c)

	status := run(c, r, "this-command-does-not-exist-anywhere")
	c.Assert(status, qt.Equals, 127)
}

func TestExecBadRedirectDiagnostic(t *testing.T) {
	c := qt.New(t)
	r, _ := newTestRunner(c)

	status := run(c, r, "cat < /nonexistent-gosh-test-path")
	c.Assert(status, qt.Equals, 1)
}

func TestExecNegationOnExternalCommand(t *testing.T) {
	c := qt.New(t)
	r, _ := newTestRunner(c)

	c.Assert(run(c, r, "! true"), qt.Equals, 1)
	c.Assert(run(c, r, "! false"), qt.Equals, 0)
}

func TestLookPathFindsOnPath(t *testing.T) {
	c := qt.New(t)
	vs := vars.New()
	vs.Set("PATH", "/usr/bin:/bin", false)

	path, err := lookPath(vs, "true")
	c.Assert(err, qt.IsNil)
	c.Assert(strings.HasSuffix(path, "/true"), qt.IsTrue)
}

func TestLookPathNotFound(t *testing.T) {
	c := qt.New(t)
	vs := vars.New()
	vs.Set("PATH", "/usr/bin:/bin", false)

	_, err := lookPath(vs, "this-command-does-not-exist-anywhere")
	c.Assert(err, qt.Not(qt.IsNil))
}

// TestTerminalHandoff exercises §4.4a: tcsetpgrp/tcgetpgrp can't be driven
// from a regular go test process (it has no controlling terminal), so this
// opens a pty pair and runs an interactive Runner against the slave end,
// the same technique the teacher's own terminal tests use.
func TestTerminalHandoff(t *testing.T) {
	c := qt.New(t)
	ptmx, tty, err := pty.Open()
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { ptmx.Close() })
	c.Cleanup(func() { tty.Close() })

	r, err := New(Interactive(true), StdIO(tty, tty, tty))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { r.Close() })
	c.Assert(r.Interactive, qt.IsTrue)

	status := run(c, r, "echo hi")
	c.Assert(status, qt.Equals, 0)

	got, err := bufio.NewReader(ptmx).ReadString('\n')
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "hi\r\n")

	// The pipeline has returned, so the terminal must be back with the
	// shell's own process group (§4.4 step 7).
	pgid, err := tcgetpgrp(r.terminalFd)
	c.Assert(err, qt.IsNil)
	c.Assert(pgid, qt.Equals, r.shellPgid)
}

// waitJobGone polls the Job Table until the background job for pgid is
// reaped, so tests don't leak a live process past their own return.
func waitJobGone(c *qt.C, r *Runner, pgid int) {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.jobs.Find(pgid) == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Fatal("background job was never reaped")
}
