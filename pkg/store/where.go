package store

import (
	"fmt"
	"strings"
)

// Where builds an AND-ed WHERE clause with numbered placeholders.
// Conditions use ? for each argument; Add renumbers them to $N.
type Where struct {
	conds []string
	args  []any
}

// Add appends a condition. Each ? in cond consumes one arg.
func (w *Where) Add(cond string, args ...any) {
	var b strings.Builder
	next := 0
	for _, r := range cond {
		if r == '?' && next < len(args) {
			w.args = append(w.args, args[next])
			next++
			fmt.Fprintf(&b, "$%d", len(w.args))
			continue
		}
		b.WriteRune(r)
	}
	w.conds = append(w.conds, b.String())
}

// In appends "column IN (...)" for a non-empty value list
func (w *Where) In(column string, values []string) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	w.Add(column+" IN ("+strings.Join(placeholders, ", ")+")", args...)
}

// String renders the clause, or "" when there are no conditions
func (w *Where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the arguments in placeholder order
func (w *Where) Args() []any {
	return w.args
}

// Paged renders "LIMIT $n OFFSET $m" for page and returns the arguments
// extended with the page bounds
func (w *Where) Paged(page Page) (string, []any) {
	n := len(w.args)
	args := append(append([]any(nil), w.args...), page.Limit(), page.Offset())
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", n+1, n+2), args
}

// ContainsPattern returns a LIKE pattern matching s anywhere, lower-cased
func ContainsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}
