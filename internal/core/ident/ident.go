// Package ident validates and quotes user-supplied SQL identifiers.
//
// Every table and column name that reaches generated SQL passes through
// Validate at the schema boundary, so quoting never has to guess.
package ident

import (
	"regexp"
	"strconv"
	"strings"

	"sage/internal/core/apperror"
)

// MaxLen is the Postgres identifier limit (NAMEDATALEN-1).
const MaxLen = 63

var pattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved lists words Postgres refuses as bare column names.
var reserved = map[string]struct{}{
	"all": {}, "analyse": {}, "analyze": {}, "and": {}, "any": {}, "array": {}, "as": {}, "asc": {},
	"asymmetric": {}, "both": {}, "case": {}, "cast": {}, "check": {}, "collate": {}, "column": {},
	"constraint": {}, "create": {}, "current_catalog": {}, "current_date": {}, "current_role": {},
	"current_time": {}, "current_timestamp": {}, "current_user": {}, "default": {}, "deferrable": {},
	"desc": {}, "distinct": {}, "do": {}, "else": {}, "end": {}, "except": {}, "false": {}, "fetch": {},
	"for": {}, "foreign": {}, "from": {}, "grant": {}, "group": {}, "having": {}, "in": {}, "initially": {},
	"intersect": {}, "into": {}, "lateral": {}, "leading": {}, "limit": {}, "localtime": {},
	"localtimestamp": {}, "not": {}, "null": {}, "offset": {}, "on": {}, "only": {}, "or": {}, "order": {},
	"placing": {}, "primary": {}, "references": {}, "returning": {}, "select": {}, "session_user": {},
	"some": {}, "symmetric": {}, "table": {}, "then": {}, "to": {}, "trailing": {}, "true": {}, "union": {},
	"unique": {}, "user": {}, "using": {}, "variadic": {}, "when": {}, "where": {}, "window": {}, "with": {},
}

// Validate rejects names outside [A-Za-z_][A-Za-z0-9_]* or longer than MaxLen.
// kind names the identifier in the error ("field name", "table name").
func Validate(kind, name string) error {
	if len(name) == 0 || len(name) > MaxLen || !pattern.MatchString(name) {
		return apperror.NewInvalidIdentifier(kind, name)
	}
	return nil
}

// IsReserved reports whether name is a reserved SQL keyword.
// Reserved names are still valid: Quote makes them safe.
func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

// Quote renders a validated identifier as a double-quoted SQL identifier.
// Quoting always keeps mixed-case names and keywords intact.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteAll quotes each name.
func QuoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Quote(n)
	}
	return out
}

// TableName is the physical table for a product id.
func TableName(productID int64) string {
	return "product_" + strconv.FormatInt(productID, 10)
}

// Literal renders s as a single-quoted SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
