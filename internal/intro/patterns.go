// Package intro finds speaker introductions ("Herr Lindman:") in transcript
// text, splits them out into announcement notes and parses them into a
// structured guess of who is speaking.
package intro

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Pattern is an introduction template valid for the years [Start, End].
type Pattern struct {
	Expr  string `toml:"expr"`
	Start int    `toml:"start"`
	End   int    `toml:"end"`
	// Who, when set, is the identity every match of this pattern refers to.
	Who string `toml:"who"`

	re *regexp.Regexp
}

// Patterns is an ordered pattern table. Earlier patterns win.
type Patterns []Pattern

// Compile compiles every expression, failing on the first invalid one.
func (ps Patterns) Compile() (Patterns, error) {
	out := make(Patterns, len(ps))
	for i, p := range ps {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile intro pattern %d (%q): %w", i, p.Expr, err)
		}
		p.re = re
		out[i] = p
	}
	return out, nil
}

// ForYear returns the patterns valid in year. Zero bounds are open.
func (ps Patterns) ForYear(year int) Patterns {
	out := make(Patterns, 0, len(ps))
	for _, p := range ps {
		if p.Start != 0 && year < p.Start {
			continue
		}
		if p.End != 0 && year > p.End {
			continue
		}
		out = append(out, p)
	}
	return out
}

type patternFile struct {
	Pattern []Pattern `toml:"pattern"`
}

// LoadPatterns reads a TOML pattern table:
//
//	[[pattern]]
//	expr = '^Herr talmannen:'
//	start = 1867
//	end = 1970
func LoadPatterns(path string) (Patterns, error) {
	var f patternFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("load intro patterns: %w", err)
	}
	return Patterns(f.Pattern).Compile()
}

// DefaultPatterns is the built-in table used when no pattern file is configured.
func DefaultPatterns() Patterns {
	ps, err := Patterns{
		{Expr: `^(Herr|Hr\.?) (förste |andre |tredje )?(vice )?[Tt]almannen[^:]{0,40}:`, Start: 1867, End: 2022},
		{Expr: `^(Fru|Herr) (förste |andre |tredje )?(vice )?[Tt]alman[^:]{0,40}:`, Start: 1971, End: 2022},
		{Expr: `^(Herr |Fru )?([Ss]tatsrådet|[Ss]tatsministern|\p{L}+ministern)[\p{L} .,\-]{0,60}?( \([\p{L}.]{1,6}\))?:`, Start: 1867, End: 2022},
		{Expr: `^(Herr|Hr\.?|Fru|Fröken|Frk\.?) [\p{Lu}][\p{L}.\-]+( [\p{L}.\-]+){0,5}( \([\p{L}.]{1,6}\))?( \p{Ll}+){0,4}:`, Start: 1867, End: 2022},
		{Expr: `^[\p{Lu}][\p{L}\-]+( [\p{Lu}][\p{L}\-]+){0,4} \([\p{L}.]{1,6}\)( \p{Ll}+){0,4}:`, Start: 1867, End: 2022},
		{Expr: `^[\p{Lu}][\p{L}\-]+( [\p{Lu}][\p{L}\-]+){1,4} i [\p{Lu}][\p{L}\-]+( \p{Ll}+){0,4}:`, Start: 1867, End: 1970},
	}.Compile()
	if err != nil {
		panic(err)
	}
	return ps
}
