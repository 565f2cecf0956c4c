package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Querier is the query surface shared by *sqlx.DB and *sqlx.Tx. Mutating
// repository methods take a Querier so callers decide the transaction scope.
type Querier interface {
	sqlx.ExtContext
}

// DB wraps sqlx.DB with an explicit transaction helper.
type DB struct {
	*sqlx.DB
}

func NewDB(db *sqlx.DB) *DB {
	return &DB{DB: db}
}

// Transact runs fn inside a single transaction. Any error (or panic) rolls
// the transaction back; otherwise it commits.
func (d *DB) Transact(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
