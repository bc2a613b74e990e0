// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalLayer is the shell's Signal Layer (SL, §4.5). Go has no user code
// that ever runs in actual signal-handler context — the runtime always
// delivers signals to a regular goroutine through a channel — so the
// self-pipe trick spec.md §9 recommends as a fix for the C source's
// async-signal-unsafe handler is simply how os/signal already works: there
// is no handler left to make safe, only a goroutine reading off a channel.
type signalLayer struct {
	r *Runner

	ch     chan os.Signal
	stopCh chan struct{}
	doneCh chan struct{}

	// waitMu serializes every blocking Wait4 call across the shell: the
	// foreground executor and the background reaper goroutine must never
	// both be blocked on a wait at once, or a child could be reported to
	// two callers racing on the same pid.
	waitMu sync.Mutex
}

func newSignalLayer(r *Runner) *signalLayer {
	return &signalLayer{r: r}
}

// install sets the shell-process signal dispositions for an interactive
// shell (§4.5 "Shell-process dispositions") and starts the background
// SIGCHLD reaper. Reasoning for ignoring SIGINT/SIGQUIT/SIGTSTP/SIGTTIN/
// SIGTTOU even though the shell is normally not in the foreground group: a
// race between fork and setpgid/tcsetpgrp can momentarily leak a terminal
// signal to the shell itself; ignoring is defense in depth, not the primary
// mechanism.
func (s *signalLayer) install(interactive bool) {
	if interactive {
		signal.Ignore(syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU)
	}
	s.ch = make(chan os.Signal, 16)
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	signal.Notify(s.ch, syscall.SIGCHLD)
	go s.reapLoop()
}

// stop tears down the reaper goroutine; used by Runner teardown and by
// tests that construct multiple Runners in one process.
func (s *signalLayer) stop() {
	if s.stopCh == nil {
		return
	}
	signal.Stop(s.ch)
	close(s.stopCh)
	<-s.doneCh
}

// reapLoop is the goroutine equivalent of mysh_complete.c's sigchld_handler:
// it wakes on every SIGCHLD notification and drains every child-state change
// currently available without blocking. If another goroutine (a foreground
// wait, see exec.go) already holds waitMu, reapLoop simply skips this
// notification — that goroutine is itself blocked inside Wait4(-1, ...) and
// will observe and dispatch the same state change directly.
func (s *signalLayer) reapLoop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.ch:
		}
		if !s.waitMu.TryLock() {
			continue
		}
		s.drainNonBlocking()
		s.waitMu.Unlock()
	}
}

func (s *signalLayer) drainNonBlocking() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}
		s.dispatch(pid, status)
	}
}

// dispatch updates the Job Table for one reported pid, per §4.5's three
// cases (exit/signal death, stop, continue).
func (s *signalLayer) dispatch(pid int, status unix.WaitStatus) {
	switch {
	case status.Exited() || status.Signaled():
		s.r.jobs.markTerminated(pid)
	case status.Stopped():
		s.r.jobs.markStopped(pid)
	case status.Continued():
		s.r.jobs.markContinued(pid)
	}
}

// waitForeground blocks, holding waitMu for its duration, until every pid in
// want has reached a terminal or stopped state, returning each pid's raw
// wait status. Because Wait4(-1, ...) reports ANY child, not just want's
// members, a background job finishing while a foreground pipeline is being
// waited on is still reaped and announced correctly — it just happens to be
// discovered by this loop instead of the async reapLoop.
func (s *signalLayer) waitForeground(want []int) map[int]unix.WaitStatus {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()

	pending := make(map[int]bool, len(want))
	for _, p := range want {
		pending[p] = true
	}
	results := make(map[int]unix.WaitStatus, len(want))

	for len(pending) > 0 {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return results
		}
		if pending[pid] {
			results[pid] = status
			if status.Exited() || status.Signaled() || status.Stopped() {
				delete(pending, pid)
			}
		}
		s.dispatch(pid, status)
	}
	return results
}
