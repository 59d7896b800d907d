package db

import (
	"context"
	"iter"
)

type scanner interface {
	Scan(dest ...any) error
}

// IterErr is an iterator over rows read from the database. Any error
// encountered while iterating is stored in Error once Iter has finished.
type IterErr[T any] struct {
	Iter  iter.Seq[T]
	Error error
}

// ForEach calls fn for each item in the iterator, stopping at the first error.
func (i *IterErr[T]) ForEach(fn func(T) error) error {
	var err error

	i.Iter(func(item T) bool {
		err = fn(item)

		return err == nil
	})

	if err != nil {
		return err
	}

	return i.Error
}

func iterRows[T any](ctx context.Context, d *DBRO, scan func(scanner) (T, error),
	query string, args ...any) *IterErr[T] {
	var ie IterErr[T]

	ie.Iter = func(yield func(T) bool) {
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			ie.Error = err

			return
		}

		defer rows.Close()

		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				ie.Error = err

				return
			}

			if !yield(item) {
				return
			}
		}

		ie.Error = rows.Err()
	}

	return &ie
}
