package advisor

import (
	"regexp"
	"sort"
	"strings"
)

// The slow-sample parsing below is a heuristic over raw SQL text, not a
// grammar. It only needs to be right often enough to rank columns; a missed
// predicate costs a suggestion, never correctness.

var (
	// whereRe captures the predicate region of a statement.
	whereRe = regexp.MustCompile(`(?is)\bwhere\b(.*?)(?:\bgroup\s+by\b|\border\s+by\b|\bhaving\b|\blimit\b|\bwindow\b|$)`)

	// columnRe matches an identifier on the left side of a comparison.
	columnRe = regexp.MustCompile(`(?i)([a-zA-Z_][a-zA-Z0-9_.]*)\s*(?:=|<>|!=|<=|>=|<|>|\bin\b|\blike\b|\bilike\b|\bbetween\b|\bis\b)`)

	// projectionRe captures the select list.
	projectionRe = regexp.MustCompile(`(?is)\bselect\s+(?:distinct\s+)?(.*?)\bfrom\b`)
)

// sqlKeywords are identifiers columnRe can match that are never columns.
var sqlKeywords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "null": {}, "true": {}, "false": {},
	"select": {}, "from": {}, "where": {}, "exists": {}, "case": {},
	"when": {}, "then": {}, "else": {}, "end": {},
}

// filterColumns extracts the distinct column names filtered in the
// statement's predicate region, unqualified and lowercased.
func filterColumns(query string) []string {
	m := whereRe.FindStringSubmatch(query)
	if m == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var cols []string
	for _, match := range columnRe.FindAllStringSubmatch(m[1], -1) {
		col := unqualify(match[1])
		if col == "" {
			continue
		}
		if _, keyword := sqlKeywords[col]; keyword {
			continue
		}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	return cols
}

// projectionColumns extracts the distinct projected column names, or nil when
// the select list is unusable for a covering suggestion (star expansion,
// expressions, or more than maxCols plain columns).
func projectionColumns(query string, maxCols int) []string {
	m := projectionRe.FindStringSubmatch(query)
	if m == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var cols []string
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "*" || strings.ContainsAny(part, "(") {
			return nil
		}
		// Drop an alias if present.
		if fields := strings.Fields(part); len(fields) > 0 {
			part = fields[0]
		}
		col := unqualify(part)
		if col == "" || !identifierRe.MatchString(col) {
			return nil
		}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	if len(cols) == 0 || len(cols) > maxCols {
		return nil
	}
	return cols
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// unqualify strips a table or schema qualifier and lowercases the name.
func unqualify(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// canonicalKey joins a sorted copy of cols, giving order-insensitive identity
// for projection lists.
func canonicalKey(cols []string) string {
	sorted := make([]string, len(cols))
	copy(sorted, cols)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
