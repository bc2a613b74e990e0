// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"strings"

	"github.com/wrenfield/gosh/expand"
	"github.com/wrenfield/gosh/vars"
)

// Parser consumes the Lexer's token stream into a Pipeline, per §4.3's
// grammar:
//
//	pipeline := ['!'] command ('|' command)* ['&']
//	command  := assignment* (word | redirect)*
//	redirect := ('<' | '>' | '>>') word
//
// Every argument and redirection word is expanded (§4.2) as it is accepted,
// against the Variable Store it was constructed with — this shell expands
// at parse time (§4.3), not at exec time.
type Parser struct {
	vars *vars.Store
}

// NewParser returns a Parser that expands words against vs.
func NewParser(vs *vars.Store) *Parser {
	return &Parser{vars: vs}
}

type parseState struct {
	lex    *Lexer
	tok    Token
	val    string
	quoted []bool
	err    error
}

func (s *parseState) next() {
	if s.err != nil {
		return
	}
	tok, val, err := s.lex.Next()
	if err != nil {
		s.err = err
		s.tok = EOF
		return
	}
	s.tok, s.val = tok, val
	if tok == Word {
		s.quoted = s.lex.Quoted()
	} else {
		s.quoted = nil
	}
}

// Parse parses one line into a Pipeline. line has its terminating newline
// already stripped. A line that is only variable assignments (e.g.
// "FOO=bar") returns a nil Pipeline and a nil error: the assignment already
// landed in the Variable Store as it was parsed, and mysh_complete.c's
// parse_pipeline/REPL pair (parse_pipeline returns 0, the REPL only reports
// an error when it returns non-zero) run this as a silent no-op rather than
// a ParseError — the caller should treat nil/nil as "nothing to execute,
// $? unchanged", not an empty command.
func (p *Parser) Parse(line string) (*Pipeline, error) {
	s := &parseState{lex: NewLexer(line)}
	s.next()
	if s.err != nil {
		return nil, s.err
	}

	pl := &Pipeline{}
	if s.tok == Bang {
		pl.Negate = true
		s.next()
		if s.err != nil {
			return nil, s.err
		}
	}

	var firstHadAssignment bool
	for i := 0; ; i++ {
		cmd, hadAssignment, err := p.parseCommand(s)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			firstHadAssignment = hadAssignment
		}
		pl.Commands = append(pl.Commands, cmd)
		if s.tok != Pipe {
			break
		}
		s.next()
		if s.err != nil {
			return nil, s.err
		}
	}

	if s.tok == Amp {
		pl.Background = true
		s.next()
		if s.err != nil {
			return nil, s.err
		}
	}
	if s.tok != EOF {
		return nil, &ParseError{Pos: s.lex.pos, Text: "unexpected token " + s.tok.String()}
	}

	first := pl.Commands[0]
	if len(first.Argv) == 0 && len(first.Redirects) == 0 {
		if firstHadAssignment && len(pl.Commands) == 1 {
			return nil, nil
		}
		return nil, &ParseError{Text: "empty command: no words or redirections"}
	}
	return pl, nil
}

// parseCommand parses assignment* (word|redirect)* and leaves s positioned
// on the token that ended it (Pipe, Amp, or EOF). The returned bool reports
// whether the command consumed at least one leading NAME=VALUE assignment,
// which Parse needs to tell a bare-assignment line apart from a genuinely
// empty command.
func (p *Parser) parseCommand(s *parseState) (Command, bool, error) {
	var cmd Command
	assignOK := true
	hadAssignment := false

	for {
		switch s.tok {
		case Pipe, Amp, EOF:
			return cmd, hadAssignment, nil
		case Less, Great, DGreat:
			var mode RedirMode
			fd := 0
			switch s.tok {
			case Less:
				mode, fd = RedirRead, 0
			case Great:
				mode, fd = RedirTruncate, 1
			case DGreat:
				mode, fd = RedirAppend, 1
			}
			s.next()
			if s.err != nil {
				return Command{}, false, s.err
			}
			if s.tok != Word {
				return Command{}, false, &ParseError{Pos: s.lex.pos, Text: "expected a filename after redirection operator"}
			}
			cmd.Redirects = append(cmd.Redirects, Redirection{
				TargetFD: fd,
				Path:     expand.Scalar(s.val, s.quoted, p.vars),
				Mode:     mode,
			})
			assignOK = false
			s.next()
			if s.err != nil {
				return Command{}, false, s.err
			}
		case Word:
			if assignOK {
				if name, value, ok := splitAssignment(s.val); ok {
					p.vars.Set(name, value, false)
					hadAssignment = true
					s.next()
					if s.err != nil {
						return Command{}, false, s.err
					}
					continue
				}
				assignOK = false
			}
			words, err := expand.Words([]string{s.val}, [][]bool{s.quoted}, p.vars)
			if err != nil {
				return Command{}, false, err
			}
			cmd.Argv = append(cmd.Argv, words...)
			s.next()
			if s.err != nil {
				return Command{}, false, s.err
			}
		default:
			return Command{}, false, &ParseError{Pos: s.lex.pos, Text: "unexpected token " + s.tok.String()}
		}
	}
}

// splitAssignment reports whether word is a NAME=VALUE assignment: NAME must
// be a non-empty identifier ([A-Za-z_][A-Za-z0-9_]*) and must be followed by
// an '='. The value is taken verbatim, unexpanded, matching
// mysh_complete.c's set_var call in parse_pipeline (the assignment's value
// is never passed through expand_word).
func splitAssignment(word string) (name, value string, ok bool) {
	eq := strings.IndexByte(word, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = word[:eq]
	if !isIdentifier(name) {
		return "", "", false
	}
	return name, word[eq+1:], true
}

func isIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
