// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// gosh is an interactive Unix command shell: it reads command lines,
// parses them into pipelines via the syntax package, and executes them via
// the interp package's job-control-aware Executor.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wrenfield/gosh/interp"
	"github.com/wrenfield/gosh/syntax"
)

var (
	app     = kingpin.New("gosh", "gosh is an interactive Unix command shell")
	command = app.Flag("command", "a single command string to execute, instead of reading from stdin").Short('c').String()
	login   = app.Flag("login", "start as a login shell (accepted, but currently has no effect)").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	os.Exit(run())
}

func run() int {
	cfg, err := interp.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gosh:", err)
		return 1
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	interactive := *command == "" && term.IsTerminal(int(os.Stdin.Fd()))

	r, err := interp.New(
		interp.Interactive(interactive),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.WithConfig(cfg),
		interp.WithLogger(logger.Sugar()),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gosh:", err)
		return 1
	}
	defer r.Close()

	_ = login // reserved: a login shell would additionally source a profile file, out of scope (§1 non-goal: persistent shell state)

	switch {
	case *command != "":
		return runLine(r, *command)
	case interactive:
		return runInteractive(r, os.Stdin, os.Stdout)
	default:
		return runScript(r, os.Stdin)
	}
}

func newLogger(cfg interp.Config) *zap.Logger {
	if !cfg.Debug {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// runLine parses and runs a single line, for the -c flag.
func runLine(r *interp.Runner, line string) int {
	return execLine(r, line)
}

// runInteractive implements §6's prompt loop: "$ " then one line per
// iteration, until EOF, with no line-editing of its own (canonical terminal
// mode does that).
func runInteractive(r *interp.Runner, stdin io.Reader, stdout io.Writer) int {
	scanner := bufio.NewScanner(stdin)
	status := 0
	fmt.Fprint(stdout, "$ ")
	for scanner.Scan() {
		status = execLine(r, scanner.Text())
		fmt.Fprint(stdout, "$ ")
	}
	return status
}

// runScript reads and runs every line of a non-interactive input stream
// (stdin piped or redirected from a file) without a prompt.
func runScript(r *interp.Runner, stdin io.Reader) int {
	scanner := bufio.NewScanner(stdin)
	status := 0
	for scanner.Scan() {
		status = execLine(r, scanner.Text())
	}
	return status
}

// execLine parses one line and, if it parses, runs it. A ParseError is
// reported on stderr and yields status 2 without aborting the shell (§7
// "discard the line, continue the loop"). A line that is only variable
// assignments parses to a nil Pipeline with a nil error (syntax.Parser.Parse):
// the assignment already took effect, and $? is left exactly as it was,
// matching mysh_complete.c's REPL treating parse_pipeline's success return
// for that case as nothing left to execute.
func execLine(r *interp.Runner, line string) int {
	if line == "" {
		return r.Vars.Status
	}
	parser := syntax.NewParser(r.Vars)
	pl, err := parser.Parse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gosh:", err)
		r.Vars.Status = 2
		return 2
	}
	if pl == nil {
		return r.Vars.Status
	}
	status, err := r.Run(pl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gosh:", err)
	}
	return status
}
