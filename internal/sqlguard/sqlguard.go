// Package sqlguard classifies a single SQL statement as safe to run
// read-only. It is a defense-in-depth filter: the gateway additionally
// executes everything inside a read-only transaction, and neither layer
// substitutes for the other.
package sqlguard

import (
	"strings"
)

// Kind is the verdict for one statement.
type Kind int

const (
	// KindSelect is a plain SELECT or a WITH chain terminating in SELECT.
	KindSelect Kind = iota
	// KindForbidden carries a mutating keyword or a non-SELECT leading clause.
	KindForbidden
	// KindMalformed is empty, unterminated, or contains stacked statements.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindForbidden:
		return "forbidden"
	default:
		return "malformed"
	}
}

// Statement is the classification result.
type Statement struct {
	Kind   Kind
	Reason string

	// References lists the relations named in FROM lists and JOIN
	// clauses at every nesting depth, minus names bound by the
	// statement's own CTEs. Used for allow-list checks.
	References []string

	// SQL is the statement with the trailing separator stripped.
	SQL string
}

// forbiddenKeywords are the data- and schema-mutating keywords rejected
// anywhere outside strings and comments. EXECUTE covers the postgres
// spelling of EXEC.
var forbiddenKeywords = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "drop": {}, "alter": {},
	"create": {}, "truncate": {}, "grant": {}, "revoke": {}, "merge": {},
	"exec": {}, "execute": {},
}

// Classify runs the full validation pipeline over one raw statement.
func Classify(raw string) Statement {
	sql := stripTrailingSeparator(strings.TrimSpace(raw))
	if sql == "" {
		return Statement{Kind: KindMalformed, Reason: "empty statement", SQL: sql}
	}

	toks, err := scan(sql)
	if err != nil {
		return Statement{Kind: KindMalformed, Reason: err.Error(), SQL: sql}
	}
	if len(toks) == 0 {
		return Statement{Kind: KindMalformed, Reason: "empty statement", SQL: sql}
	}

	if hasSeparator(toks) {
		return Statement{Kind: KindMalformed, Reason: "multiple statements are not allowed", SQL: sql}
	}

	if kw := forbiddenKeyword(toks); kw != "" {
		return Statement{Kind: KindForbidden, Reason: "statement contains forbidden keyword " + strings.ToUpper(kw), SQL: sql}
	}

	cteNames, ok := leadsWithSelect(toks)
	if !ok {
		return Statement{Kind: KindForbidden, Reason: "only SELECT statements are allowed", SQL: sql}
	}

	return Statement{
		Kind:       KindSelect,
		References: referencedTables(toks, cteNames),
		SQL:        sql,
	}
}

// stripTrailingSeparator removes exactly one trailing semicolon. Any
// other separator left in the text fails classification later.
func stripTrailingSeparator(sql string) string {
	if strings.HasSuffix(sql, ";") {
		return strings.TrimSpace(sql[:len(sql)-1])
	}
	return sql
}

func hasSeparator(toks []token) bool {
	for _, t := range toks {
		if t.kind == tokPunct && t.text == ";" {
			return true
		}
	}
	return false
}

func forbiddenKeyword(toks []token) string {
	for _, t := range toks {
		if t.kind != tokWord {
			continue
		}
		if _, bad := forbiddenKeywords[t.text]; bad {
			return t.text
		}
	}
	return ""
}

// leadsWithSelect checks that the effective leading clause is SELECT,
// unwrapping a WITH chain when present. It returns the set of names the
// chain binds so reference checks can exclude them.
func leadsWithSelect(toks []token) (map[string]struct{}, bool) {
	cteNames := map[string]struct{}{}

	i := 0
	first := toks[i]
	if first.kind != tokWord {
		return nil, false
	}
	if first.text == "select" {
		return cteNames, true
	}
	if first.text != "with" {
		return nil, false
	}

	i++
	if i < len(toks) && toks[i].kind == tokWord && toks[i].text == "recursive" {
		i++
	}

	for {
		// CTE name
		if i >= len(toks) || (toks[i].kind != tokWord && toks[i].kind != tokQuoted) {
			return nil, false
		}
		cteNames[toks[i].text] = struct{}{}
		i++

		// Optional column list
		if i < len(toks) && toks[i].text == "(" {
			var ok bool
			i, ok = skipParens(toks, i)
			if !ok {
				return nil, false
			}
		}

		if i >= len(toks) || toks[i].kind != tokWord || toks[i].text != "as" {
			return nil, false
		}
		i++

		// Optional [NOT] MATERIALIZED
		if i < len(toks) && toks[i].kind == tokWord && toks[i].text == "not" {
			i++
		}
		if i < len(toks) && toks[i].kind == tokWord && toks[i].text == "materialized" {
			i++
		}

		// CTE body
		if i >= len(toks) || toks[i].text != "(" {
			return nil, false
		}
		var ok bool
		i, ok = skipParens(toks, i)
		if !ok {
			return nil, false
		}

		if i < len(toks) && toks[i].text == "," {
			i++
			continue
		}
		break
	}

	if i < len(toks) && toks[i].kind == tokWord && toks[i].text == "select" {
		return cteNames, true
	}
	return nil, false
}

// skipParens advances past a balanced parenthesized group starting at
// toks[open] == "(". Returns the index after the closing paren.
func skipParens(toks []token, open int) (int, bool) {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// fromListEnders are the clause keywords that terminate a FROM list at
// their own depth. ON and USING are absent on purpose: a comma after a
// join condition resumes the FROM list, and a join condition cannot
// contain a bare comma at the list's depth.
var fromListEnders = map[string]struct{}{
	"where": {}, "group": {}, "having": {}, "window": {},
	"order": {}, "limit": {}, "offset": {}, "fetch": {},
	"for": {}, "union": {}, "intersect": {}, "except": {},
}

// referencedTables collects the relations named in FROM lists and JOIN
// clauses, at every nesting depth, minus names the statement's CTEs
// bind. Schema qualification ("schema.table") keeps only the final
// component. A FROM list is comma-separated, so after the FROM keyword
// the scan stays armed at that depth until a clause keyword or closing
// paren ends the list; every comma then reads another relation.
func referencedTables(toks []token, cteNames map[string]struct{}) []string {
	seen := map[string]struct{}{}
	var out []string

	// capture reads the single relation reference starting at i.
	// Subqueries and table-valued functions contribute no name of
	// their own; their interiors are scanned by the main loop.
	capture := func(i int) {
		for i < len(toks) && toks[i].kind == tokWord &&
			(toks[i].text == "only" || toks[i].text == "lateral") {
			i++
		}
		if i >= len(toks) {
			return
		}
		next := toks[i]
		if next.kind != tokWord && next.kind != tokQuoted {
			return
		}
		name := next.text
		if i+2 < len(toks) && toks[i+1].text == "." {
			if toks[i+2].kind == tokWord || toks[i+2].kind == tokQuoted {
				name = toks[i+2].text
				i += 2
			}
		}
		// table-valued functions are not table references
		if i+1 < len(toks) && toks[i+1].text == "(" {
			return
		}
		if _, isCTE := cteNames[name]; isCTE {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	// inFrom holds the paren depths with an open FROM list.
	inFrom := map[int]struct{}{}

	for i, t := range toks {
		switch {
		case t.kind == tokWord && t.text == "from":
			inFrom[t.depth] = struct{}{}
			capture(i + 1)
		case t.kind == tokWord && t.text == "join":
			capture(i + 1)
		case t.kind == tokPunct && t.text == ",":
			if _, open := inFrom[t.depth]; open {
				capture(i + 1)
			}
		case t.kind == tokPunct && t.text == ")":
			// closing a paren ends any FROM list opened inside it
			delete(inFrom, t.depth+1)
		case t.kind == tokWord:
			if _, ends := fromListEnders[t.text]; ends {
				delete(inFrom, t.depth)
			}
		}
	}
	return out
}
