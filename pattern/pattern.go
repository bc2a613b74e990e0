// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package pattern translates a shell pathname pattern into a Go regular
// expression. §4.2.3's pathname expansion only ever asks whether a word
// contains '*' or '?' and, if so, what regular expression matches it — no
// bracket character classes, no "**" globstar, no case-folding. Those are
// real features of a fuller glob dialect, but they are also explicitly
// outside §4.2's "globbing rule minutiae" non-goal, so this package only
// implements the two metacharacters the Expander actually looks for.
package pattern

import (
	"regexp"
	"strings"
)

// Mode supplies options to Regexp.
type Mode uint

const (
	// Filenames means "*" and "?" don't match the path separator '/'.
	Filenames Mode = 1 << iota
	// EntireString anchors the translated expression with ^ and $.
	EntireString
)

// Regexp turns a pattern built only from literal bytes, '*', and '?' into a
// regular expression usable with [regexp.Compile]. '*' becomes ".*" (or
// "[^/]*" under Filenames); '?' becomes "." (or "[^/]"); a backslash makes
// the byte after it literal; every other byte is quoted literally. The
// "(?s)" flag prefix is only emitted when the pattern has a '*' or '?' or
// EntireString is set. There is no error case left to report — unlike the
// full glob grammar, a lone '*'/'?' pattern has no unterminated-bracket
// failure mode — but Regexp keeps returning an error to stay a drop-in for
// the richer translator this was adapted from.
func Regexp(pat string, mode Mode) (string, error) {
	var sb strings.Builder
	if mode&EntireString != 0 || HasMeta(pat, mode) {
		sb.WriteString("(?s)")
	}
	if mode&EntireString != 0 {
		sb.WriteString("^")
	}
	for i := 0; i < len(pat); i++ {
		switch c := pat[i]; c {
		case '*':
			if mode&Filenames != 0 {
				sb.WriteString("[^/]*")
			} else {
				sb.WriteString(".*")
			}
		case '?':
			if mode&Filenames != 0 {
				sb.WriteString("[^/]")
			} else {
				sb.WriteString(".")
			}
		case '\\':
			if i+1 < len(pat) {
				i++
			}
			sb.WriteString(regexp.QuoteMeta(pat[i : i+1]))
		default:
			sb.WriteString(regexp.QuoteMeta(pat[i : i+1]))
		}
	}
	if mode&EntireString != 0 {
		sb.WriteString("$")
	}
	return sb.String(), nil
}

// HasMeta returns whether pat contains an unescaped '*' or '?'. When it
// returns false, pat can only ever match one string, so Expander's caller
// can skip a filesystem read entirely.
//
// The [Mode] parameter is unused; it is kept so callers don't need to know
// HasMeta never varies with it.
func HasMeta(pat string, mode Mode) bool {
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '\\':
			i++
		case '*', '?':
			return true
		}
	}
	return false
}
