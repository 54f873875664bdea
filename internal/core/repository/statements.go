package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/duynhne/session-service/internal/core/domain"
)

const (
	// DefaultUserTableName is the user table used when Opts leaves it empty.
	DefaultUserTableName = "user"
	// DefaultSessionTableName is the session table used when Opts leaves it empty.
	DefaultSessionTableName = "session"
)

// Statement templates. %[1]s is the session table, %[2]s the user table.
const (
	getSessionTemplate         = `SELECT * FROM %[1]s WHERE id = ?`
	getUserTemplate            = `SELECT %[2]s.* FROM %[1]s INNER JOIN %[2]s ON %[2]s.id = %[1]s.user_id WHERE %[1]s.id = ?`
	updateExpirationTemplate   = `UPDATE %[1]s SET expires_at = ? WHERE id = ?`
	deleteSessionTemplate      = `DELETE FROM %[1]s WHERE id = ?`
	deleteUserSessionsTemplate = `DELETE FROM %[1]s WHERE user_id = ?`
	deleteExpiredTemplate      = `DELETE FROM %[1]s WHERE expires_at <= ?`
)

// Dialect selects identifier quoting and placeholder style.
type Dialect int

const (
	// Generic quotes identifiers with backticks and uses ? placeholders.
	Generic Dialect = iota
	// SQLite dialect
	SQLite
	// MySQL dialect
	MySQL
	// PostgreSQL dialect, double-quoted identifiers and $n placeholders
	PostgreSQL
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	case PostgreSQL:
		return "postgres"
	default:
		return "generic"
	}
}

// ParseDialect maps a driver name to its Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "generic":
		return Generic, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return PostgreSQL, nil
	default:
		return Generic, fmt.Errorf("unknown dialect %q", name)
	}
}

// Quote escapes a single identifier for the dialect.
func (d Dialect) Quote(name string) string {
	if d == PostgreSQL {
		return pgx.Identifier{name}.Sanitize()
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == PostgreSQL {
		return sq.Dollar
	}
	return sq.Question
}

// Opts configures an adapter.
type Opts struct {
	// UserTable defaults to DefaultUserTableName.
	UserTable string
	// SessionTable defaults to DefaultSessionTableName.
	SessionTable string
	// Dialect defaults to Generic.
	Dialect Dialect

	// SessionAttributes and UserAttributes declare the attribute columns of
	// each table. When set they are checked once, at construction.
	SessionAttributes []string
	UserAttributes    []string

	// Now is the clock used by DeleteExpiredSessions. Defaults to time.Now.
	Now func() time.Time
}

// statements holds the escaped table names and every fixed statement,
// rendered once for the configured dialect.
type statements struct {
	dialect      Dialect
	sessionTable string
	userTable    string
	now          func() time.Time

	getSession         string
	getUser            string
	updateExpiration   string
	deleteSession      string
	deleteUserSessions string
	deleteExpired      string
}

func newStatements(opts *Opts) (*statements, error) {
	var o Opts
	if opts != nil {
		o = *opts
	}
	if o.UserTable == "" {
		o.UserTable = DefaultUserTableName
	}
	if o.SessionTable == "" {
		o.SessionTable = DefaultSessionTableName
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	if err := validateAttributeColumns(o.SessionAttributes, domain.ColumnID, domain.ColumnUserID, domain.ColumnExpiresAt); err != nil {
		return nil, fmt.Errorf("session attributes: %w", err)
	}
	if err := validateAttributeColumns(o.UserAttributes, domain.ColumnID); err != nil {
		return nil, fmt.Errorf("user attributes: %w", err)
	}

	s := &statements{
		dialect:      o.Dialect,
		sessionTable: o.Dialect.Quote(o.SessionTable),
		userTable:    o.Dialect.Quote(o.UserTable),
		now:          o.Now,
	}

	queries := []struct {
		dst  *string
		tmpl string
	}{
		{&s.getSession, getSessionTemplate},
		{&s.getUser, getUserTemplate},
		{&s.updateExpiration, updateExpirationTemplate},
		{&s.deleteSession, deleteSessionTemplate},
		{&s.deleteUserSessions, deleteUserSessionsTemplate},
		{&s.deleteExpired, deleteExpiredTemplate},
	}
	for _, q := range queries {
		query, err := s.dialect.placeholders().ReplacePlaceholders(fmt.Sprintf(q.tmpl, s.sessionTable, s.userTable))
		if err != nil {
			return nil, err
		}
		*q.dst = query
	}

	return s, nil
}

// insertSession builds the INSERT for a session. Column and value lists are
// produced together so an Unset attribute drops out of both.
func (s *statements) insertSession(session *domain.Session) (string, []any, error) {
	columns := []string{
		s.dialect.Quote(domain.ColumnID),
		s.dialect.Quote(domain.ColumnUserID),
		s.dialect.Quote(domain.ColumnExpiresAt),
	}
	values := []any{session.ID, session.UserID, domain.UnixSeconds(session.ExpiresAt)}

	keys := make([]string, 0, len(session.Attributes))
	for k := range session.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := session.Attributes[k]
		if domain.IsUnset(v) {
			continue
		}
		columns = append(columns, s.dialect.Quote(k))
		values = append(values, v)
	}

	return sq.Insert(s.sessionTable).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(s.dialect.placeholders()).
		ToSql()
}

func validateAttributeColumns(columns []string, reserved ...string) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("empty column name: %w", domain.ErrInvalidSchema)
		}
		for _, r := range reserved {
			if strings.EqualFold(c, r) {
				return fmt.Errorf("column %q is reserved: %w", c, domain.ErrInvalidSchema)
			}
		}
		if _, ok := seen[c]; ok {
			return fmt.Errorf("column %q declared twice: %w", c, domain.ErrInvalidSchema)
		}
		seen[c] = struct{}{}
	}
	return nil
}
