package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/avoronin/lending-service/internal/errs"
	"github.com/avoronin/lending-service/internal/model"
)

var bookColumns = []string{"id", "title", "author", "isbn", "total_copies", "available_copies", "created_at"}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "isbn", "total_copies", "available_copies").
		Values(req.Title, req.Author, req.ISBN, req.TotalCopies, req.TotalCopies).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, errors.Wrap(errs.ErrConflict, "book with this isbn")
		}
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.Book, error) {
	q, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errors.Wrap(errs.ErrNotFound, "book")
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	q, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	books := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// UpdateBook applies a partial update under a row lock. A totalCopies change
// shifts availableCopies by the same delta; the result must stay non-negative,
// which keeps availableCopies <= totalCopies as well.
func (r *repository) UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest) (model.Book, error) {
	var book model.Book
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if book, err = lockBook(ctx, tx, id); err != nil {
			return err
		}

		if req.Title != nil {
			book.Title = *req.Title
		}
		if req.Author != nil {
			book.Author = *req.Author
		}
		if req.ISBN != nil {
			book.ISBN = *req.ISBN
		}
		if req.TotalCopies != nil {
			delta := *req.TotalCopies - book.TotalCopies
			book.TotalCopies = *req.TotalCopies
			book.AvailableCopies += delta
			if book.AvailableCopies < 0 {
				return errors.Wrap(errs.ErrInvalidState, "total copies cannot be less than available copies")
			}
		}

		q, args, err := qb.Update(booksTableName).
			Set("title", book.Title).
			Set("author", book.Author).
			Set("isbn", book.ISBN).
			Set("total_copies", book.TotalCopies).
			Set("available_copies", book.AvailableCopies).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			if isUniqueViolation(err) {
				return errors.Wrap(errs.ErrConflict, "another book with this isbn")
			}
			r.log.Error("UpdateBook", zap.String("q", q), zap.Any("args", args))
			return err
		}
		return nil
	})
	if err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// DeleteBook removes the book together with its closed issue history.
// Any open issue record blocks the deletion.
func (r *repository) DeleteBook(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockBook(ctx, tx, id); err != nil {
			return err
		}

		open, err := countOpenIssues(ctx, tx, sq.Eq{"book_id": id})
		if err != nil {
			return err
		}
		if open > 0 {
			return errors.Wrapf(errs.ErrInvalidState, "%d active issue record(s) reference this book", open)
		}

		if err := deleteIssues(ctx, tx, sq.Eq{"book_id": id}); err != nil {
			return err
		}

		q, args, err := qb.Delete(booksTableName).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, q, args...)
		return err
	})
}

// lockBook reads the book row FOR UPDATE, serializing every copy-counter
// mutation against the same book.
func lockBook(ctx context.Context, tx *sqlx.Tx, id int64) (model.Book, error) {
	q, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := tx.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errors.Wrap(errs.ErrNotFound, "book")
		}
		return model.Book{}, err
	}
	return book, nil
}

func countOpenIssues(ctx context.Context, tx *sqlx.Tx, pred sq.Eq) (int, error) {
	q, args, err := qb.Select("count(*)").
		From(issuesTableName).
		Where(pred).
		Where(sq.Eq{"returned_at": nil}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func deleteIssues(ctx context.Context, tx *sqlx.Tx, pred sq.Eq) error {
	q, args, err := qb.Delete(issuesTableName).Where(pred).ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q, args...)
	return err
}
