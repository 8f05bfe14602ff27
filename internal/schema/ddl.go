package schema

import "strings"

// ExtractColumns extracts ordered column names from a CREATE TABLE
// statement string (spec.md §4.7). The supported dialect never nests
// parentheses inside a column definition, so the algorithm is a plain
// top-level comma split between the first "(" and the last ")": no real SQL
// parser is involved, matching the spec's explicit heuristic rather than
// the fuller DDL grammar sqlparser understands (see DESIGN.md).
func ExtractColumns(createSQL string) []string {
	open := strings.Index(createSQL, "(")
	lastClose := strings.LastIndex(createSQL, ")")
	if open < 0 || lastClose < 0 || lastClose <= open {
		return nil
	}
	body := createSQL[open+1 : lastClose]

	parts := splitTopLevelCommas(body)
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		cols = append(cols, strings.Trim(fields[0], `"`+"`"+`[]`))
	}
	return cols
}

// splitTopLevelCommas splits on commas that are not nested inside
// parentheses. The grammar this extractor supports has no nested
// parentheses in column definitions (spec.md §4.7), but splitting
// paren-aware costs nothing and protects against the rare CHECK(...) or
// DEFAULT(...) clause some CREATE TABLE statements carry.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ColumnIndex returns the position of column (case-insensitive, ASCII) in
// cols, or -1 if absent.
func ColumnIndex(cols []string, column string) int {
	for i, c := range cols {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

// HasIntegerPrimaryKeyAlias reports whether createSQL contains the phrase
// "id integer primary key" (case-insensitive). Per spec.md §4.9/§9, this is
// a deliberate substring heuristic standing in for parsing each column
// definition for INTEGER PRIMARY KEY: it is exactly what the supported
// grammar needs and no more.
func HasIntegerPrimaryKeyAlias(createSQL string) bool {
	return strings.Contains(strings.ToLower(createSQL), "id integer primary key")
}
