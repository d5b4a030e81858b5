package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/avoronin/lending-service/internal/errs"
	"github.com/avoronin/lending-service/internal/model"
)

// IssueBook is the contended path: the book row is locked FOR UPDATE before
// the availability check, so two issues racing for the last copy serialize
// and exactly one of them wins.
func (r *repository) IssueBook(ctx context.Context, userID, bookID int64) (model.IssueRecord, error) {
	var rec model.IssueRecord
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var user model.User
		q, args, err := qb.Select(userColumns...).
			From(usersTableName).
			Where(sq.Eq{"id": userID}).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &user, q, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrap(errs.ErrNotFound, "user")
			}
			return err
		}

		book, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return errors.Wrap(errs.ErrInvalidState, "no available copies to issue")
		}

		if err := adjustAvailable(ctx, tx, bookID, -1); err != nil {
			return err
		}

		q, args, err = qb.Insert(issuesTableName).
			Columns("issue_uid", "book_id", "user_id").
			Values(uuid.New(), bookID, userID).
			Suffix("returning id, issue_uid, issued_at").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&rec.ID, &rec.IssueUid, &rec.IssuedAt); err != nil {
			r.log.Error("IssueBook", zap.String("q", q), zap.Any("args", args))
			return err
		}
		rec.BookID = bookID
		rec.UserID = userID
		rec.BookTitle = book.Title
		rec.UserName = user.Name
		return nil
	})
	if err != nil {
		return model.IssueRecord{}, err
	}
	return rec, nil
}

// ReturnBook closes an open record once. The book row is locked before the
// record is re-read, matching the lock order of every other book mutation.
func (r *repository) ReturnBook(ctx context.Context, issueID int64) (model.IssueRecord, error) {
	var rec model.IssueRecord
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var bookID int64
		q, args, err := qb.Select("book_id").
			From(issuesTableName).
			Where(sq.Eq{"id": issueID}).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrap(errs.ErrNotFound, "issue record")
			}
			return err
		}

		book, err := lockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}

		q, args, err = qb.Select("id", "issue_uid", "book_id", "user_id", "issued_at", "returned_at").
			From(issuesTableName).
			Where(sq.Eq{"id": issueID}).
			Suffix("for update").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, q, args...).
			Scan(&rec.ID, &rec.IssueUid, &rec.BookID, &rec.UserID, &rec.IssuedAt, &rec.ReturnedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrap(errs.ErrNotFound, "issue record")
			}
			return err
		}
		if rec.ReturnedAt != nil {
			return errors.Wrap(errs.ErrInvalidState, "book already returned")
		}

		if err := adjustAvailable(ctx, tx, bookID, 1); err != nil {
			return err
		}

		q, args, err = qb.Update(issuesTableName).
			Set("returned_at", sq.Expr("now()")).
			Where(sq.Eq{"id": issueID}).
			Suffix("returning returned_at").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&rec.ReturnedAt); err != nil {
			r.log.Error("ReturnBook", zap.String("q", q), zap.Any("args", args))
			return err
		}

		rec.BookTitle = book.Title
		q, args, err = qb.Select("name").From(usersTableName).Where(sq.Eq{"id": rec.UserID}).ToSql()
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, q, args...).Scan(&rec.UserName)
	})
	if err != nil {
		return model.IssueRecord{}, err
	}
	return rec, nil
}

func (r *repository) ListIssues(ctx context.Context, onlyOpen bool) ([]model.IssueRecord, error) {
	q := qb.Select("i.id", "i.issue_uid", "i.book_id", "i.user_id",
		"b.title as book_title", "u.name as user_name", "i.issued_at", "i.returned_at").
		From(issuesTableName + " i").
		Join(booksTableName + " b on b.id = i.book_id").
		Join(usersTableName + " u on u.id = i.user_id").
		OrderBy("i.issued_at desc")

	if onlyOpen {
		q = q.Where(sq.Eq{"i.returned_at": nil})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListIssues", zap.String("query", query), zap.Any("args", args))

	items := make([]model.IssueRecord, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// adjustAvailable assumes the caller holds the book row lock.
func adjustAvailable(ctx context.Context, tx *sqlx.Tx, bookID int64, delta int) error {
	q := `
update books
    set available_copies = available_copies + $2
where id = $1`
	_, err := tx.ExecContext(ctx, q, bookID, delta)
	return err
}
