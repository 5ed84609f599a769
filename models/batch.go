package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// The deployment runs behind a connection-pooling proxy that serializes
// statements independently, so interactive transactions (open, read, decide,
// write, commit) are not available to this codebase. Writes that must land
// together are expressed as a WriteOp batch: every op is fully built before
// ApplyBatch is called, and no op reads or branches. The storage engine
// applies the set as one indivisible unit or not at all.

// WriteOp is a single pre-bound write statement.
type WriteOp func(tx *gorm.DB) error

// ApplyBatch applies a fixed set of writes as one atomic unit. The ops are
// executed in order; the first failure aborts the whole batch.
func ApplyBatch(db *gorm.DB, ops ...WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) == 1 {
		return ops[0](db)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := op(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// IsDuplicateKeyErr reports a unique-constraint violation on any dialect.
// MySQL error 1062 is matched directly for drivers that bypass gorm's error
// translation.
func IsDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
