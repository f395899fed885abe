package storage

import (
	"context"
	"fmt"

	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/domain/users"
	"casinodir/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

// Repos is one set of repositories bound to the same Querier: the pool, or
// a transaction inside WithTx.
type Repos struct {
	Entries entries.Store
	Reviews reviews.Store
	Users   users.Store
}

func newRepos(q dbx.Querier) *Repos {
	return &Repos{
		Entries: entries.NewRepository(q),
		Reviews: reviews.NewRepository(q),
		Users:   users.NewRepository(q),
	}
}

type Container struct {
	Repos
	pool dbx.TxBeginner
}

func NewContainer(db dbx.TxBeginner) *Container {
	return &Container{
		Repos: *newRepos(db),
		pool:  db,
	}
}

// WithTx runs fn against tx-scoped repositories and commits when fn returns
// nil. Any error rolls the whole unit back.
func (c *Container) WithTx(ctx context.Context, fn func(r *Repos) error) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil (did you forget to set pool in NewContainer?)")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
