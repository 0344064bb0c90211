// Package repository implements the storage contracts of the service
// layer on MySQL through database/sql.  Constraint violations reported
// by the server are translated into the sentinel errors of the model
// package so that higher layers never inspect driver errors: a
// duplicate key (1062) becomes a uniqueness error, a missing parent
// row (1452) becomes the matching not-found error, and a deadlock (1213)
// or lock wait timeout (1205) inside an order becomes
// model.ErrBookingConflict.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	errDupEntry = 1062 // ER_DUP_ENTRY
	errNoParent = 1452 // ER_NO_REFERENCED_ROW_2
	errLockWait = 1205 // ER_LOCK_WAIT_TIMEOUT
	errDeadlock = 1213 // ER_LOCK_DEADLOCK
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique index violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == errDupEntry }

// isLockConflict reports that InnoDB gave up on a row lock.  The
// statement, or with a deadlock the whole transaction, was rolled back.
func isLockConflict(err error) bool {
	n := mysqlErrNumber(err)
	return n == errDeadlock || n == errLockWait
}

// isMissingParent reports a foreign key violation on insert or update.
// The message names the constraint, which lets callers tell which parent
// was missing when a row has several.
func isMissingParent(err error, column string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != errNoParent {
		return false
	}
	return column == "" || strings.Contains(me.Message, "`"+column+"`")
}

// placeholders returns "?,?,...,?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func uint64Args(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
