// Package routing implements the runtime's route pattern language and the
// per-distributor route table.
package routing

import (
	"fmt"
	"regexp"
	"strings"

	razyerr "github.com/razy-dev/razy/internal/errors"
)

// Pattern is a compiled path matcher. The pattern language:
//
//	:a        any non-slash characters
//	:d / :D   digits / non-digits
//	:w / :W   letters / non-letters
//	:[class]  regex character class
//	{n}       preceding token: exactly n characters
//	{min,max} preceding token: between min and max characters
//	(…)       capture group passed to the handler
type Pattern struct {
	Raw string

	re *regexp.Regexp

	// specificity inputs, derived from the raw pattern
	leadingLiteral int // consecutive literal segments from the left
	literalSegs    int
	literalChars   int
}

var quantifierRe = regexp.MustCompile(`^\{\d+(,\d+)?\}`)

// Compile parses a pattern into a Pattern. Syntax errors wrap ErrPatternSyntax.
func Compile(raw string) (*Pattern, error) {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("%w: pattern %q must begin with '/'", razyerr.ErrPatternSyntax, raw)
	}

	var re strings.Builder
	re.WriteString("^")
	depth := 0
	lastWasToken := false

	i := 0
	for i < len(raw) {
		c := raw[i]
		switch c {
		case ':':
			class, consumed, err := tokenClass(raw[i:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v in %q", razyerr.ErrPatternSyntax, err, raw)
			}
			i += consumed
			// A quantifier immediately after a token replaces its '+'.
			if q := quantifierRe.FindString(raw[i:]); q != "" {
				re.WriteString(class + q)
				i += len(q)
			} else {
				re.WriteString(class + "+")
			}
			lastWasToken = true
			continue
		case '(':
			re.WriteString("(")
			depth++
		case ')':
			if depth == 0 {
				return nil, fmt.Errorf("%w: unmatched ')' in %q", razyerr.ErrPatternSyntax, raw)
			}
			re.WriteString(")")
			depth--
		case '{':
			if !lastWasToken {
				return nil, fmt.Errorf("%w: quantifier without preceding token in %q", razyerr.ErrPatternSyntax, raw)
			}
			return nil, fmt.Errorf("%w: stray quantifier in %q", razyerr.ErrPatternSyntax, raw)
		default:
			re.WriteString(regexp.QuoteMeta(string(c)))
		}
		lastWasToken = false
		i++
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unmatched '(' in %q", razyerr.ErrPatternSyntax, raw)
	}
	re.WriteString("$")

	compiled, err := regexp.Compile(re.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", razyerr.ErrPatternSyntax, err)
	}

	p := &Pattern{Raw: raw, re: compiled}
	p.scoreSegments()
	return p, nil
}

// tokenClass maps a token starting at s[0] == ':' to its character class.
// Returns the class (without quantifier) and the bytes consumed.
func tokenClass(s string) (string, int, error) {
	if len(s) < 2 {
		return "", 0, fmt.Errorf("dangling ':'")
	}
	switch s[1] {
	case 'a':
		return "[^/]", 2, nil
	case 'd':
		return "[0-9]", 2, nil
	case 'D':
		return "[^0-9]", 2, nil
	case 'w':
		return "[a-zA-Z]", 2, nil
	case 'W':
		return "[^a-zA-Z]", 2, nil
	case '[':
		end := strings.IndexByte(s, ']')
		if end == -1 {
			return "", 0, fmt.Errorf("unterminated character class")
		}
		return s[1 : end+1], end + 1, nil
	}
	return "", 0, fmt.Errorf("unknown token %q", s[:2])
}

// scoreSegments derives the specificity inputs. A segment is literal when it
// contains no token or capture syntax.
func (p *Pattern) scoreSegments() {
	segs := strings.Split(strings.Trim(p.Raw, "/"), "/")
	leadingDone := false
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		if strings.ContainsAny(seg, ":(") {
			leadingDone = true
			continue
		}
		p.literalSegs++
		p.literalChars += len(seg)
		if !leadingDone {
			p.leadingLiteral++
		}
	}
}

// Specificity orders patterns for matching: longer literal prefixes first,
// then more literal segments, then more literal characters. Higher wins.
func (p *Pattern) Specificity() int64 {
	lead := int64(min(p.leadingLiteral, 0xFFFF))
	segs := int64(min(p.literalSegs, 0xFFFF))
	chars := int64(min(p.literalChars, 0xFFFF))
	return lead<<32 | segs<<16 | chars
}

// Match matches a request path, returning captured argument values in order.
func (p *Pattern) Match(path string) ([]string, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// NumCaptures returns the number of capture groups.
func (p *Pattern) NumCaptures() int {
	return p.re.NumSubexp()
}
