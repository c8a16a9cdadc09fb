// Package sqlxrepos implements the domain repositories on top of jmoiron/sqlx.
// Queries are written once with `?` placeholders and rebound for the driver in use (PostgreSQL or SQLite).
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
)

type baseRepo struct {
	exec core.DBExecutor
}

// getExec returns the executor given by the service (usually a transaction), or the repository's default one.
func (repo baseRepo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo baseRepo) get(ctx context.Context, exec []core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	exe := repo.getExec(exec)
	return sqlx.GetContext(ctx, exe, dest, exe.Rebind(query), args...)
}

func (repo baseRepo) selekt(ctx context.Context, exec []core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	exe := repo.getExec(exec)
	return sqlx.SelectContext(ctx, exe, dest, exe.Rebind(query), args...)
}

// run executes query and returns the number of affected rows.
func (repo baseRepo) run(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) (int64, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (repo baseRepo) namedExec(ctx context.Context, exec []core.DBExecutor, query string, arg interface{}) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// selectIn runs a query holding an `IN (?)` clause expanded for the slice arguments.
func (repo baseRepo) selectIn(ctx context.Context, exec []core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, qArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return repo.selekt(ctx, exec, dest, q, qArgs...)
}

// trapErr maps "no rows" to notFound and unique violations to core.DuplicateIdentifierError.
func trapErr(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	if field, ok := uniqueViolation(err); ok {
		return core.NewDuplicateIdentifierError(field)
	}
	return errors.Wrap(err, msg)
}

// uniqueViolation reports whether err is a unique constraint violation and which field caused it.
func uniqueViolation(err error) (string, bool) {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		if e.Code != "23505" {
			return "", false
		}
		field := strings.TrimPrefix(e.Constraint, e.Table+"_")
		field = strings.TrimSuffix(strings.TrimSuffix(field, "_key"), "_idx")
		return field, true
	case sqlite3.Error:
		if e.ExtendedCode != sqlite3.ErrConstraintUnique && e.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return "", false
		}
		return sqliteConstraintField(e.Error()), true
	}
	return "", false
}

// sqliteConstraintField extracts the first column from "UNIQUE constraint failed: table.col1, table.col2"
// or the index name from "UNIQUE constraint failed: index 'name'".
func sqliteConstraintField(msg string) string {
	idx := strings.Index(msg, "failed: ")
	if idx < 0 {
		return "record"
	}
	target := msg[idx+len("failed: "):]
	if strings.HasPrefix(target, "index ") {
		return strings.Trim(strings.TrimPrefix(target, "index "), "'")
	}
	target = strings.SplitN(target, ",", 2)[0]
	if dot := strings.LastIndex(target, "."); dot >= 0 {
		target = target[dot+1:]
	}
	return strings.TrimSpace(target)
}

func newID() string {
	return uuid.New().String()
}

// validID reports whether id can be looked up at all. Malformed ids are plain "not found".
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// orderBy builds an ORDER BY clause out of the orderings whose field is a known column.
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// whereClause accumulates the conditions of a query along with their arguments.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// contains returns a LIKE pattern matching s anywhere, to be compared against a LOWER()'d column.
func contains(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

func nullTime(t *time.Time) null.Time {
	if t == nil || t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time.UTC()
	return &tt
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	return sqlx.In(query, args...)
}
