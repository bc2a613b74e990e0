// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package vars implements the shell's Variable Store: a process-wide table
// mapping a name to a value and an exported flag, plus the handful of
// read-only pseudo-variables ($?, $$, $!) that are synthesized on lookup
// rather than stored.
package vars

import (
	"os"
	"strconv"
	"sync"
)

// Var is a single variable entry: a name, its value, and whether it has been
// marked for export into the process environment.
type Var struct {
	Name     string
	Value    string
	Exported bool
}

// Store is the shell's Variable Store (VS). Create one with New: the zero
// Store has no variable map (Set on it panics) and no Pid.
//
// Invariant: if a Var's Exported field is true, os.Environ also contains an
// entry for that name with the same value. Set and Export are the only
// mutators that touch the process environment; nothing else in the shell
// calls os.Setenv directly.
type Store struct {
	mu   sync.RWMutex
	vars map[string]*Var

	Pid    int // $$: this process's pid, fixed at construction
	Status int // $?: exit status of the last pipeline
	LastBG int // $!: pid or pgid of the most recently launched background pipeline
}

// New returns a Store ready to track variables for a shell process.
func New() *Store {
	return &Store{
		vars: make(map[string]*Var),
		Pid:  os.Getpid(),
	}
}

// Set assigns name=value in the store. If exported is true the variable is
// also marked exported and synced into the process environment; if the
// variable was already exported, assigning a new value keeps it exported and
// re-syncs the environment, matching mysh_complete.c's set_var.
func (s *Store) Set(name, value string, exported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	if !ok {
		v = &Var{Name: name}
		s.vars[name] = v
	}
	v.Value = value
	if exported {
		v.Exported = true
	}
	if v.Exported {
		os.Setenv(name, value)
	}
}

// Export marks an existing variable as exported and syncs it to the process
// environment. It is a no-op if the name isn't set (§4.7 "Unknown names are
// silently ignored").
func (s *Store) Export(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	if !ok {
		return
	}
	v.Exported = true
	os.Setenv(name, v.Value)
}

// Get resolves a name to its value following §4.2.2's lookup order: special
// pseudo-variables, then the shell variable store, then the process
// environment. A variable that resolves to nothing expands to the empty
// string, never an error.
func (s *Store) Get(name string) string {
	switch name {
	case "?":
		return strconv.Itoa(s.Status)
	case "$":
		return strconv.Itoa(s.Pid)
	case "!":
		if s.LastBG == 0 {
			return ""
		}
		return strconv.Itoa(s.LastBG)
	}
	s.mu.RLock()
	if v, ok := s.vars[name]; ok {
		s.mu.RUnlock()
		return v.Value
	}
	s.mu.RUnlock()
	return os.Getenv(name)
}

// Lookup is like Get but also reports whether the name resolves to anything
// at all (shell variable, environment variable, or pseudo-variable).
func (s *Store) Lookup(name string) (string, bool) {
	switch name {
	case "?", "$", "!":
		return s.Get(name), true
	}
	s.mu.RLock()
	if v, ok := s.vars[name]; ok {
		s.mu.RUnlock()
		return v.Value, true
	}
	s.mu.RUnlock()
	return os.LookupEnv(name)
}

// Environ returns the process environment that should be passed to a child
// process: the current os.Environ (which already reflects every exported
// variable, since Set/Export keep it in sync) is sufficient and is what
// Environ returns.
func (s *Store) Environ() []string {
	return os.Environ()
}
