// Package sqlxrepos implements the repositories on Postgres with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
)

// Postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// base is embedded by every repository.
type base struct {
	exec core.DBExecutor
}

func (b base) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return b.exec
}

// inTx reports whether exec runs inside a transaction.
func inTx(exec core.DBExecutor) bool {
	_, ok := exec.(*sqlx.Tx)
	return ok
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapPQErr maps unique and foreign key violations to the given errors, when set.
func trapPQErr(err error, onUnique, onForeignKey error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch {
		case pqErr.Code == pqUniqueViolation && onUnique != nil:
			return onUnique
		case pqErr.Code == pqForeignKeyViolation && onForeignKey != nil:
			return onForeignKey
		}
	}
	return errors.Wrap(err, msg)
}

// mustAffect returns notFound when res reports no affected rows.
func mustAffect(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// where collects ANDed conditions written with ? placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders ordering, keeping only the fields found in columns.
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderList = append(orderList, fallback)
	return " ORDER BY " + strings.Join(orderList, ", ")
}
