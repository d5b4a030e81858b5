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

var userColumns = []string{"id", "name", "email", "created_at"}

func (r *repository) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("name", "email").
		Values(req.Name, req.Email).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errors.Wrap(errs.ErrConflict, "user with this email")
		}
		r.log.Error("CreateUser", zap.String("q", q), zap.Any("args", args))
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUser(ctx context.Context, id int64) (model.User, error) {
	q, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errors.Wrap(errs.ErrNotFound, "user")
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]model.User, error) {
	q, args, err := qb.Select(userColumns...).
		From(usersTableName).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0)
	if err := r.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) UpdateUser(ctx context.Context, id int64, req model.UpdateUserRequest) (model.User, error) {
	var user model.User
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := qb.Select(userColumns...).
			From(usersTableName).
			Where(sq.Eq{"id": id}).
			Suffix("for update").
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

		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Email != nil {
			user.Email = *req.Email
		}

		q, args, err = qb.Update(usersTableName).
			Set("name", user.Name).
			Set("email", user.Email).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			if isUniqueViolation(err) {
				return errors.Wrap(errs.ErrConflict, "user with this email")
			}
			r.log.Error("UpdateUser", zap.String("q", q), zap.Any("args", args))
			return err
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// DeleteUser mirrors DeleteBook: open issues block the deletion, closed
// history goes away with the user.
func (r *repository) DeleteUser(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := qb.Select("id").
			From(usersTableName).
			Where(sq.Eq{"id": id}).
			Suffix("for update").
			ToSql()
		if err != nil {
			return err
		}
		var userID int64
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrap(errs.ErrNotFound, "user")
			}
			return err
		}

		open, err := countOpenIssues(ctx, tx, sq.Eq{"user_id": id})
		if err != nil {
			return err
		}
		if open > 0 {
			return errors.Wrapf(errs.ErrInvalidState, "%d active issue record(s) reference this user", open)
		}

		if err := deleteIssues(ctx, tx, sq.Eq{"user_id": id}); err != nil {
			return err
		}

		q, args, err = qb.Delete(usersTableName).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, q, args...)
		return err
	})
}
