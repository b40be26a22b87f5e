// Package bitpattern compiles the disassembler automaton's bit-pattern
// mini-DSL — a token-width string of '0'/'1'/'.' with embedded
// "name@bits" capture groups, e.g. "01 a@.. 1 b@ c@..." — into a
// structured field list. It is deliberately a separate, validated
// parser so pattern misuse is caught once at automaton construction
// rather than during a match, reusing
// github.com/alecthomas/participle/v2 the same way kanso's own grammar
// package turns a textual grammar into a typed tree.
package bitpattern

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// patternLexer tokenizes a single bit-pattern string. Capture names are
// letters only (matching the original's 'a'...'z' | 'A'...'Z' rule);
// bit runs are any mixture of '0', '1', '.'; everything else is a
// lexer error, which is how invalid characters like '/' are rejected.
var patternLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Ident", `[a-zA-Z]+`, nil},
		{"At", `@`, nil},
		{"Bits", `[01.]+`, nil},
		{"Whitespace", `[ \t]+`, nil},
	},
})

// Field is one parsed group: either a named capture (optionally
// followed by its own bit run, possibly empty as in "b@") or a bare run
// of literal bits with no capture. The alternation guarantees every
// Field consumes at least one token, so repeating it (fieldList.Fields)
// cannot loop without making progress.
type Field struct {
	Capture *Capture `parser:"  @@"`
	Plain   string   `parser:"| @Bits"`
}

// Capture is a named group: "name@" followed by an optional bit run.
type Capture struct {
	Name string `parser:"@Ident At"`
	Bits string `parser:"[ @Bits ]"`
}

// Name returns the field's capture name, or "" if it is a plain run.
func (f *Field) Name() string {
	if f.Capture != nil {
		return f.Capture.Name
	}
	return ""
}

// Bits returns the field's literal bit run regardless of whether it is
// a capture or a plain field.
func (f *Field) Bits() string {
	if f.Capture != nil {
		return f.Capture.Bits
	}
	return f.Plain
}

// fieldList is the participle grammar root.
type fieldList struct {
	Fields []*Field `parser:"@@*"`
}

var fieldParser = buildParser()

func buildParser() *participle.Parser[fieldList] {
	p, err := participle.Build[fieldList](
		participle.Lexer(patternLexer),
		participle.Elide("Whitespace"),
	)
	if err != nil {
		panic(fmt.Errorf("bitpattern: grammar build failed: %w", err))
	}
	return p
}

// Parse compiles a bit-pattern source string into its field list. Parse
// errors here are programming errors, detected once at automaton
// construction — callers (internal/automaton) are expected to panic,
// not propagate.
func Parse(src string) ([]*Field, error) {
	res, err := fieldParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("bitpattern: invalid pattern %q: %w", src, err)
	}
	return res.Fields, nil
}
