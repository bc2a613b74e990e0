// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/wrenfield/gosh/vars"
)

func newTestRunnerForBuiltins(c *qt.C) (*Runner, *os.File, func() string) {
	f, err := os.CreateTemp(c.TempDir(), "gosh-builtin-stdout")
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { f.Close() })

	r := &Runner{
		Vars:   vars.New(),
		Stdin:  os.Stdin,
		Stdout: f,
		Stderr: os.Stderr,
	}
	r.jobs = NewTable(f)
	r.sig = newSignalLayer(r)

	return r, f, func() string {
		data, err := os.ReadFile(f.Name())
		c.Assert(err, qt.IsNil)
		return string(data)
	}
}

func TestBuiltinCdMissingHome(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)
	c.Setenv("HOME", "")
	os.Unsetenv("HOME")

	var stderr bytes.Buffer
	status := builtinCd(r, []string{"cd"}, &stderr)
	c.Assert(status, qt.Equals, 1)
	c.Assert(stderr.String(), qt.Equals, "cd: HOME not set\n")
}

func TestBuiltinCdSuccess(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)
	dir := c.TempDir()

	var stderr bytes.Buffer
	status := builtinCd(r, []string{"cd", dir}, &stderr)
	c.Assert(status, qt.Equals, 0)

	wd, err := os.Getwd()
	c.Assert(err, qt.IsNil)
	realDir, err := os.Readlink(dir)
	if err != nil {
		realDir = dir
	}
	c.Assert(wd == dir || wd == realDir, qt.IsTrue)
}

func TestBuiltinCdFailure(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)

	var stderr bytes.Buffer
	status := builtinCd(r, []string{"cd", "/does/not/exist/anywhere"}, &stderr)
	c.Assert(status, qt.Equals, 1)
	c.Assert(stderr.String() != "", qt.IsTrue)
}

func TestBuiltinExportSetsAndSyncs(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)
	defer os.Unsetenv("GOSH_BUILTIN_TEST")

	status := builtinExport(r, []string{"export", "GOSH_BUILTIN_TEST=1"})
	c.Assert(status, qt.Equals, 0)
	c.Assert(os.Getenv("GOSH_BUILTIN_TEST"), qt.Equals, "1")
}

func TestBuiltinExportBareNameIgnoredIfUnknown(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)

	status := builtinExport(r, []string{"export", "DOES_NOT_EXIST_ANYWHERE_TEST"})
	c.Assert(status, qt.Equals, 0)
}

func TestBuiltinJobsListsEveryJob(t *testing.T) {
	c := qt.New(t)
	r, f, read := newTestRunnerForBuiltins(c)
	r.jobs.Add(100, []int{100}, "sleep 1", true)
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)

	status := builtinJobs(r, f)
	c.Assert(status, qt.Equals, 0)
	c.Assert(read(), qt.Equals, "[1] Running    sleep 1\n")
}

func TestSelectJobNoJobs(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)

	_, err := selectJob(r, []string{"fg"})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestSelectJobByPercentID(t *testing.T) {
	c := qt.New(t)
	r, _, _ := newTestRunnerForBuiltins(c)
	r.jobs.Add(100, []int{100}, "a", true)
	r.jobs.Add(200, []int{200}, "b", true)

	j, err := selectJob(r, []string{"fg", "%1"})
	c.Assert(err, qt.IsNil)
	c.Assert(j.Pgid, qt.Equals, 100)
}
