package sqlguard

import (
	"errors"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // bare identifier or keyword, lowercased
	tokQuoted                  // double-quoted identifier, quotes removed
	tokPunct                   // single punctuation rune
)

// token is one lexical unit outside of strings and comments. depth is
// the parenthesis nesting level at the token's position.
type token struct {
	kind  tokenKind
	text  string
	depth int
}

var (
	errUnterminatedString  = errors.New("unterminated string literal")
	errUnterminatedIdent   = errors.New("unterminated quoted identifier")
	errUnterminatedComment = errors.New("unterminated block comment")
	errUnterminatedDollar  = errors.New("unterminated dollar-quoted string")
)

// scan tokenizes a statement, discarding string literal and comment
// contents. It deliberately does not treat backslash as an escape
// inside quoted strings: with standard_conforming_strings on, a
// backslash is literal, and erring on the side of leaving the string
// earlier than the server would only makes the filter stricter.
func scan(sql string) ([]token, error) {
	var toks []token
	depth := 0
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			// line comment
			for i < n && sql[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			// block comments nest in postgres
			level := 1
			i += 2
			for i < n && level > 0 {
				if sql[i] == '/' && i+1 < n && sql[i+1] == '*' {
					level++
					i += 2
				} else if sql[i] == '*' && i+1 < n && sql[i+1] == '/' {
					level--
					i += 2
				} else {
					i++
				}
			}
			if level > 0 {
				return nil, errUnterminatedComment
			}

		case c == '\'':
			end, ok := skipQuoted(sql, i, '\'')
			if !ok {
				return nil, errUnterminatedString
			}
			i = end

		case c == '"':
			end, ok := skipQuoted(sql, i, '"')
			if !ok {
				return nil, errUnterminatedIdent
			}
			toks = append(toks, token{kind: tokQuoted, text: sql[i+1 : end-1], depth: depth})
			i = end

		case c == '$':
			if end, ok := skipDollarQuoted(sql, i); ok {
				i = end
				break
			}
			if tag := dollarTag(sql, i); tag != "" {
				return nil, errUnterminatedDollar
			}
			// a lone $ (positional parameter etc.)
			toks = append(toks, token{kind: tokPunct, text: "$", depth: depth})
			i++

		case isWordStart(rune(c)):
			start := i
			for i < n && isWordRune(rune(sql[i])) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: strings.ToLower(sql[start:i]), depth: depth})

		case c == '(':
			toks = append(toks, token{kind: tokPunct, text: "(", depth: depth})
			depth++
			i++

		case c == ')':
			depth--
			toks = append(toks, token{kind: tokPunct, text: ")", depth: depth})
			i++

		default:
			toks = append(toks, token{kind: tokPunct, text: string(c), depth: depth})
			i++
		}
	}

	return toks, nil
}

// skipQuoted advances past a quoted region starting at sql[start] ==
// quote, honoring doubled-quote escapes. Returns the index just past
// the closing quote.
func skipQuoted(sql string, start int, quote byte) (int, bool) {
	i := start + 1
	n := len(sql)
	for i < n {
		if sql[i] == quote {
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1, true
		}
		i++
	}
	return 0, false
}

// dollarTag returns the $tag$ opener at position i, or "" when the text
// at i is not a dollar-quote opener.
func dollarTag(sql string, i int) string {
	n := len(sql)
	j := i + 1
	for j < n && (isWordRune(rune(sql[j])) && sql[j] != '$') {
		j++
	}
	if j < n && sql[j] == '$' {
		return sql[i : j+1]
	}
	return ""
}

func skipDollarQuoted(sql string, start int) (int, bool) {
	tag := dollarTag(sql, start)
	if tag == "" {
		return 0, false
	}
	rest := sql[start+len(tag):]
	end := strings.Index(rest, tag)
	if end < 0 {
		return 0, false
	}
	return start + len(tag) + end + len(tag), true
}

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
