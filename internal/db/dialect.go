package db

import (
	"strings"

	"gorm.io/gorm"
)

// Dialect names as reported by gorm dialectors.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the dialect behind conn, or "" when unknown.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether conn talks to SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// KeywordCondition builds a case-insensitive substring match across columns.
// SQLite has no ILIKE, so both sides are lowered there.
func KeywordCondition(conn *gorm.DB, keyword string, columns ...string) (string, []any) {
	pattern := "%" + keyword + "%"
	op := "%s ILIKE ?"
	if IsSQLite(conn) {
		pattern = strings.ToLower(pattern)
		op = "LOWER(%s) LIKE ?"
	}
	clauses := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		clauses = append(clauses, strings.Replace(op, "%s", column, 1))
		args = append(args, pattern)
	}
	return strings.Join(clauses, " OR "), args
}
