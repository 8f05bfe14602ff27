package engine

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// queryShape is the recognized shape of a supported SELECT (spec.md §4.9).
// The planner stops here: execution lives in engine.go, comparison logic in
// one place (spec.md §9 "WHERE parser ... keep this parser in one place").
type queryShape struct {
	table    string
	isCount  bool
	columns  []string // requested column names, in output order
	whereCol string   // "" means no WHERE clause
	whereVal string
}

// parseSelect recognizes a COUNT(...) or a column list, each optionally
// followed by a single equality WHERE clause, and rejects everything else
// with a single-line diagnostic naming the unsupported element (spec.md §4.9
// "Error conditions"). The argument of COUNT is not checked.
func parseSelect(sql string) (*queryShape, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, fmt.Errorf("empty query")
	}

	stmt, err := sqlparser.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("unrecognized query shape: %w", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, fmt.Errorf("unsupported statement type %T", stmt)
	}

	table := tableName(sel)
	if table == "" {
		return nil, fmt.Errorf("could not resolve a table name")
	}

	shape := &queryShape{table: table}
	for _, expr := range sel.SelectExprs {
		aliased, ok := expr.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, fmt.Errorf("unsupported select expression %T", expr)
		}
		switch inner := aliased.Expr.(type) {
		case *sqlparser.FuncExpr:
			if !strings.EqualFold(inner.Name.String(), "count") {
				return nil, fmt.Errorf("unsupported function %q", inner.Name.String())
			}
			shape.isCount = true
		case *sqlparser.ColName:
			shape.columns = append(shape.columns, inner.Name.String())
		default:
			return nil, fmt.Errorf("unsupported select expression %T", inner)
		}
	}
	if shape.isCount && len(shape.columns) > 0 {
		return nil, fmt.Errorf("COUNT(*) cannot be combined with column selection")
	}
	if !shape.isCount && len(shape.columns) == 0 {
		return nil, fmt.Errorf("no columns requested")
	}

	if sel.Where != nil {
		col, val, err := parseEqualityWhere(sel.Where.Expr)
		if err != nil {
			return nil, err
		}
		shape.whereCol, shape.whereVal = col, val
	}

	return shape, nil
}

func tableName(sel *sqlparser.Select) string {
	if len(sel.From) == 0 {
		return ""
	}
	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return ""
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return ""
	}
	return name.Name.String()
}

// parseEqualityWhere recognizes exactly the supported WHERE shape: a single
// equality between a column and a single-quoted string literal (spec.md
// §4.9 item 3, §9 "a single equality with a single-quoted string literal").
func parseEqualityWhere(expr sqlparser.Expr) (col, val string, err error) {
	cmp, ok := expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return "", "", fmt.Errorf("malformed WHERE clause: only a single equality is supported")
	}
	if cmp.Operator != sqlparser.EqualStr {
		return "", "", fmt.Errorf("malformed WHERE clause: unsupported operator %q", cmp.Operator)
	}
	colExpr, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return "", "", fmt.Errorf("malformed WHERE clause: left side must be a column name")
	}
	valExpr, ok := cmp.Right.(*sqlparser.SQLVal)
	if !ok || valExpr.Type != sqlparser.StrVal {
		return "", "", fmt.Errorf("malformed WHERE clause: right side must be a string literal")
	}
	return colExpr.Name.String(), string(valExpr.Val), nil
}
