package db

import (
	"context"
	"errors"

	"github.com/mnuddindev/resourcebase/pkg/utils"
	"gorm.io/gorm"
)

// Transact runs fn in one transaction on a single pooled connection. The
// transaction is committed when fn returns nil and rolled back otherwise.
// Caller cancellation does not abort a transaction that has started.
//
// CustomErrors returned by fn pass through unchanged; anything else becomes
// a write failure.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(context.WithoutCancel(ctx)).Transaction(fn)
	if err == nil {
		return nil
	}
	return AsWriteError(err, "Write failed")
}

// AsWriteError maps a persistence error onto the error taxonomy.
func AsWriteError(err error, message string) error {
	var ce *utils.CustomError
	if utils.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.ErrNotFound.WithCause(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return utils.ErrConflict.WithCause(err)
	}
	return utils.WrapError(err, utils.ErrInternalServerError.Code, message)
}
