// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"io"
	"sync"
)

// State is a Job's position in the Running -> Stopped -> Done state machine
// driven by the SIGCHLD handler (§4.4 "State machine per job").
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "?"
	}
}

// Job is a pipeline as seen by the shell's job table: one process group,
// possibly several member pids, a display string built from the pipeline's
// argv0s (mysh_complete.c's add_job took a single "command" string; this
// carries the same idea as a joined display).
type Job struct {
	ID      int
	Pgid    int
	State   State
	Display string

	// pids are the job's member processes. alive tracks how many of them
	// have not yet been reaped; the job is Done once it reaches zero.
	pids  []int
	alive int
}

// Table is the shell's Job Table (JT, §4.6): an ordered list of live jobs
// keyed by pgid, mutated only from the main goroutine or from the SIGCHLD
// reaper — both paths take mu, since Go's memory model requires real
// synchronization even where the C source's single-threaded signal
// discipline did not.
type Table struct {
	mu     sync.Mutex
	jobs   []*Job
	nextID int
	out    io.Writer
}

// NewTable returns an empty Job Table that announces background/state-change
// lines to out (normally the shell's stdout).
func NewTable(out io.Writer) *Table {
	return &Table{nextID: 1, out: out}
}

// Add appends a Job for pgid with the given member pids and display string.
// If background is true, it immediately prints "[id] pgid" per
// mysh_complete.c's add_job.
func (t *Table) Add(pgid int, pids []int, display string, background bool) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{
		ID:      t.nextID,
		Pgid:    pgid,
		State:   Running,
		Display: display,
		pids:    append([]int(nil), pids...),
		alive:   len(pids),
	}
	t.nextID++
	t.jobs = append(t.jobs, j)
	if background {
		fmt.Fprintf(t.out, "[%d] %d\n", j.ID, j.Pgid)
	}
	return j
}

// Find returns the Job whose process group is pgid, or nil.
func (t *Table) Find(pgid int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.find(pgid)
}

func (t *Table) find(pgid int) *Job {
	for _, j := range t.jobs {
		if j.Pgid == pgid {
			return j
		}
	}
	return nil
}

// findByPid returns the Job owning pid, whether or not pid is the group
// leader — §4.5 "non-leader children produce updates too and must be
// tolerated".
func (t *Table) findByPid(pid int) *Job {
	for _, j := range t.jobs {
		for _, p := range j.pids {
			if p == pid {
				return j
			}
		}
	}
	return nil
}

// Last returns the most recently added live Job, or nil if JT is empty. This
// is the target fg/bg fall back to when no %id is given.
func (t *Table) Last() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.jobs) == 0 {
		return nil
	}
	return t.jobs[len(t.jobs)-1]
}

// ByID returns the Job with the given 1-based id, or nil.
func (t *Table) ByID(id int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Remove deletes the Job for pgid. Remaining jobs keep their ids; there is
// no renumbering while the user can still reference them by id.
func (t *Table) Remove(pgid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := range t.jobs {
		if j.Pgid == pgid {
			t.jobs = append(t.jobs[:i:i], t.jobs[i+1:]...)
			return
		}
	}
}

// List returns a snapshot of every live job, in insertion order, for the
// `jobs` builtin.
func (t *Table) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// markStopped flips a job to Stopped and announces it, unless it is already
// stopped (WUNTRACED can report the same stop more than once in the kernel's
// notification stream).
func (t *Table) markStopped(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := t.findByPid(pid)
	if j == nil || j.State == Stopped {
		return
	}
	j.State = Stopped
	fmt.Fprintf(t.out, "[%d] Stopped %s\n", j.ID, j.Display)
}

// markContinued flips a job back to Running after SIGCONT.
func (t *Table) markContinued(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := t.findByPid(pid)
	if j == nil {
		return
	}
	j.State = Running
}

// markTerminated records that one member of the job owning pid has exited or
// been killed by a signal. The job is marked Done, announced and removed
// only once every one of its member pids has been reaped (alive reaches
// zero); until then it stays in the table with its current state.
func (t *Table) markTerminated(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := t.findByPid(pid)
	if j == nil {
		return
	}
	j.alive--
	if j.alive > 0 {
		return
	}
	j.State = Done
	fmt.Fprintf(t.out, "[%d] Done    %s\n", j.ID, j.Display)
	for i, jj := range t.jobs {
		if jj == j {
			t.jobs = append(t.jobs[:i:i], t.jobs[i+1:]...)
			break
		}
	}
}
