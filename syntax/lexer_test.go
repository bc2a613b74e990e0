// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer(src)
	var toks []Token
	for {
		tok, _, err := l.Next()
		qt.Assert(t, err, qt.IsNil)
		toks = append(toks, tok)
		if tok == EOF {
			return toks
		}
	}
}

func lexWords(t *testing.T, src string) []string {
	t.Helper()
	l := NewLexer(src)
	var words []string
	for {
		tok, val, err := l.Next()
		qt.Assert(t, err, qt.IsNil)
		if tok == EOF {
			return words
		}
		words = append(words, val)
	}
}

func TestLexerOperators(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	c.Assert(lexAll(t, "a | b"), qt.DeepEquals, []Token{Word, Pipe, Word, EOF})
	c.Assert(lexAll(t, "a < b > c >> d & "), qt.DeepEquals,
		[]Token{Word, Less, Word, Great, Word, DGreat, Word, Amp, EOF})
	c.Assert(lexAll(t, "! a"), qt.DeepEquals, []Token{Bang, Word, EOF})
}

func TestLexerQuoting(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want []string
	}{
		{`echo hello`, []string{"echo", "hello"}},
		{`echo 'a b' c`, []string{"echo", "a b", "c"}},
		{`echo "a b" c`, []string{"echo", "a b", "c"}},
		{`echo '"'`, []string{"echo", `"`}},
		{`echo "'"`, []string{"echo", "'"}},
		{`echo a\ b`, []string{"echo", "a b"}},
		{`echo "a\"b"`, []string{"echo", `a"b`}},
		{`echo "a\$b"`, []string{"echo", `a$b`}},
		{`echo "keeps $ literal"`, []string{"echo", "keeps $ literal"}},
	}
	for _, tc := range tests {
		c := qt.New(t)
		c.Assert(lexWords(t, tc.src), qt.DeepEquals, tc.want, qt.Commentf("src=%q", tc.src))
	}
}

func TestLexerQuotedMask(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	l := NewLexer(`echo '$HOME'`)

	tok, val, err := l.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(tok, qt.Equals, Word)
	c.Assert(val, qt.Equals, "echo")
	c.Assert(l.Quoted(), qt.DeepEquals, []bool{false, false, false, false})

	tok, val, err = l.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(tok, qt.Equals, Word)
	c.Assert(val, qt.Equals, "$HOME")
	c.Assert(l.Quoted(), qt.DeepEquals, []bool{true, true, true, true, true})
}

func TestLexerQuotedBangIsNotOperator(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	l := NewLexer(`'!'`)
	tok, val, err := l.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(tok, qt.Equals, Word, qt.Commentf("a quoted ! is a literal word, not negation"))
	c.Assert(val, qt.Equals, "!")
}

func TestLexerUnterminatedQuote(t *testing.T) {
	c := qt.New(t)
	l := NewLexer(`echo 'unterminated`)
	_, _, err := l.Next()
	c.Assert(err, qt.IsNil)
	_, _, err = l.Next()
	c.Assert(err, qt.Not(qt.IsNil))
}
