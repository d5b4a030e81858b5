package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/avoronin/lending-service/internal/model"
	lendingRepo "github.com/avoronin/lending-service/internal/repository"
)

//go:generate mockgen -source=../repository/repository.go -destination=mocks/mock.go -package=repo_mocks

type Service struct {
	log  *zap.Logger
	repo lendingRepo.Repository
}

func NewService(repo lendingRepo.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

// CreateBook normalizes totalCopies to at least one copy; availableCopies
// always starts equal to totalCopies.
func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	if req.TotalCopies < 1 {
		req.TotalCopies = 1
	}
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) GetBook(ctx context.Context, id int64) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *Service) UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, req)
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	return s.repo.DeleteBook(ctx, id)
}

func (s *Service) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	return s.repo.CreateUser(ctx, req)
}

func (s *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req model.UpdateUserRequest) (model.User, error) {
	return s.repo.UpdateUser(ctx, id, req)
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) IssueBook(ctx context.Context, req model.IssueBookRequest) (model.IssueRecord, error) {
	rec, err := s.repo.IssueBook(ctx, req.UserID, req.BookID)
	if err != nil {
		return model.IssueRecord{}, err
	}
	s.log.Info("book issued",
		zap.Int64("issueId", rec.ID),
		zap.Int64("bookId", rec.BookID),
		zap.Int64("userId", rec.UserID))
	return rec, nil
}

func (s *Service) ReturnBook(ctx context.Context, issueID int64) (model.IssueRecord, error) {
	rec, err := s.repo.ReturnBook(ctx, issueID)
	if err != nil {
		return model.IssueRecord{}, err
	}
	s.log.Info("book returned",
		zap.Int64("issueId", rec.ID),
		zap.Int64("bookId", rec.BookID))
	return rec, nil
}

func (s *Service) ListIssues(ctx context.Context, onlyOpen bool) ([]model.IssueRecord, error) {
	return s.repo.ListIssues(ctx, onlyOpen)
}
