// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package expand implements the shell's Expander: tilde, parameter, and
// pathname expansion performed on individual lexed tokens, in that order,
// per the three-phase procedure mysh_complete.c's expand_word hard-codes into
// a single pass over the word's bytes.
package expand

import (
	"context"
	"os"
	"os/user"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wrenfield/gosh/pattern"
	"github.com/wrenfield/gosh/vars"
)

// Word expands a single token through all three phases. Only pathname
// expansion can turn one token into many; the other two phases always
// produce exactly one string.
//
// quoted is the lexer's per-byte single-quote protection mask for word (see
// [syntax.Lexer.Quoted]); a nil mask means "nothing is quoted". §4.1
// requires single-quoted bytes to survive all three phases untouched, so
// every phase here takes and returns an updated mask alongside the
// transformed text, since tilde and parameter expansion both change length.
func Word(word string, quoted []bool, vs *vars.Store) []string {
	word, quoted = tildeExpand(word, quoted)
	word, quoted = paramExpand(word, quoted, vs)
	return pathnameExpand(word, quoted)
}

// Scalar expands a word that must resolve to exactly one string, such as a
// redirection target: tilde and parameter expansion behave as in Word, but
// if pathname expansion matches more than one filesystem entry only the
// first (sorted) match is used, since a redirection can only name one file.
func Scalar(word string, quoted []bool, vs *vars.Store) string {
	words := Word(word, quoted, vs)
	return words[0]
}

// Words expands every word of a command. Pathname expansion reads the
// filesystem, so independent words are expanded concurrently via an
// errgroup, mirroring how the commands of a pipeline run concurrently at the
// process level. quoted[i] is the protection mask for words[i] (nil entries
// mean "nothing quoted in this word").
func Words(words []string, quoted [][]bool, vs *vars.Store) ([]string, error) {
	results := make([][]string, len(words))
	g, _ := errgroup.WithContext(context.Background())
	for i, w := range words {
		var mask []bool
		if i < len(quoted) {
			mask = quoted[i]
		}
		g.Go(func() error {
			results[i] = Word(w, mask, vs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(words))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// maskFor returns quoted if it already covers word, or a same-length
// all-false mask otherwise, so every expansion phase can index it
// unconditionally.
func maskFor(word string, quoted []bool) []bool {
	if len(quoted) == len(word) {
		return quoted
	}
	return make([]bool, len(word))
}

// tildeExpand rewrites every `~` that starts the word, or immediately
// follows a `:`, into $HOME (or ~user into that user's home directory via
// the OS user database). Everything else is left untouched. A `~` inside
// single quotes is never a boundary candidate: it is copied through
// literally, per §4.1.
func tildeExpand(word string, quoted []bool) (string, []bool) {
	quoted = maskFor(word, quoted)
	var b strings.Builder
	var out []bool
	b.Grow(len(word))
	for i := 0; i < len(word); i++ {
		c := word[i]
		atBoundary := i == 0 || word[i-1] == ':'
		if c != '~' || !atBoundary || quoted[i] {
			b.WriteByte(c)
			out = append(out, quoted[i])
			continue
		}
		j := i + 1
		for j < len(word) && word[j] != '/' && word[j] != ':' {
			j++
		}
		name := word[i+1 : j]
		home, ok := lookupHome(name)
		if ok {
			b.WriteString(home)
			for range home {
				out = append(out, false)
			}
		} else {
			b.WriteString(word[i:j])
			out = append(out, quoted[i:j]...)
		}
		i = j - 1
	}
	return b.String(), out
}

func lookupHome(name string) (string, bool) {
	if name == "" {
		home, ok := os.LookupEnv("HOME")
		return home, ok
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}

var paramRx = regexp.MustCompile(`\$(?:\{([A-Za-z_][A-Za-z0-9_]*|[?$!])\}|([A-Za-z_][A-Za-z0-9_]*|[?$!]))`)

// paramExpand resolves $NAME, ${NAME}, and the three pseudo-variables
// against the Variable Store. A name that resolves to nothing expands to the
// empty string, never an error (§4.2 "Missing variable expands to the empty
// string"). A `$` inside single quotes never starts an expansion — §4.1's
// `echo '$HOME'` must print the four literal characters, not $HOME's value.
func paramExpand(word string, quoted []bool, vs *vars.Store) (string, []bool) {
	quoted = maskFor(word, quoted)
	if vs == nil || !strings.Contains(word, "$") {
		return word, quoted
	}
	matches := paramRx.FindAllStringSubmatchIndex(word, -1)
	if matches == nil {
		return word, quoted
	}
	var b strings.Builder
	var out []bool
	appendLiteral := func(a, z int) {
		b.WriteString(word[a:z])
		out = append(out, quoted[a:z]...)
	}
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		appendLiteral(last, start)
		if quoted[start] {
			appendLiteral(start, end)
			last = end
			continue
		}
		nameStart, nameEnd := m[2], m[3]
		if nameStart == -1 {
			nameStart, nameEnd = m[4], m[5]
		}
		val := vs.Get(word[nameStart:nameEnd])
		b.WriteString(val)
		for range val {
			out = append(out, false)
		}
		last = end
	}
	appendLiteral(last, len(word))
	return b.String(), out
}

// hasUnquotedMeta reports whether word contains a '*' or '?' that isn't
// protected by single quotes. Only those bytes matter for deciding whether
// to attempt pathname expansion at all: a word that is entirely or
// partially quoted around its only metacharacters, like '*', must be left
// as a literal per §4.1 rather than handed to the filesystem glob.
func hasUnquotedMeta(word string, quoted []bool) bool {
	quoted = maskFor(word, quoted)
	for i := 0; i < len(word); i++ {
		switch word[i] {
		case '\\':
			i++
		case '*', '?':
			if !quoted[i] {
				return true
			}
		}
	}
	return false
}

// pathnameExpand matches a word containing glob metacharacters against the
// filesystem, replacing it with the sorted list of matches. A word with no
// matches passes through unchanged (GLOB_NOCHECK semantics); a word with no
// unquoted metacharacters is returned as-is without touching the
// filesystem. Mixed quoting around a single metacharacter run (e.g. part of
// one word quoted, part not) is resolved at the whole-word granularity this
// mask captures, not byte-by-byte within the constructed regular
// expression; see DESIGN.md.
func pathnameExpand(word string, quoted []bool) []string {
	if !hasUnquotedMeta(word, quoted) {
		return []string{word}
	}
	matches, err := glob(word)
	if err != nil || len(matches) == 0 {
		return []string{word}
	}
	sort.Strings(matches)
	return matches
}

// glob expands a single pathname pattern against the filesystem. Only the
// final path component may contain metacharacters; a metacharacter in a
// directory component is treated as a literal match failure (falling back to
// GLOB_NOCHECK), which is an acceptable simplification per spec.md's
// explicit non-goal of "globbing rule minutiae beyond what §4.2 states".
func glob(pat string) ([]string, error) {
	dir, file := path.Split(pat)
	if pattern.HasMeta(dir, 0) {
		return nil, nil
	}
	searchDir := dir
	if searchDir == "" {
		searchDir = "."
	}
	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil, err
	}
	expr, err := pattern.Regexp(file, pattern.Filenames|pattern.EntireString)
	if err != nil {
		return nil, err
	}
	rx := regexp.MustCompile(expr)
	var out []string
	for _, e := range entries {
		if rx.MatchString(e.Name()) {
			out = append(out, dir+e.Name())
		}
	}
	return out, nil
}
