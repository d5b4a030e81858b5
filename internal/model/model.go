package model

import (
	"time"

	"github.com/google/uuid"
)

type Book struct {
	ID              int64     `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            string    `json:"isbn" db:"isbn"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// IssueRecord is an open loan until ReturnedAt is set; the transition
// is one-way and happens exactly once.
type IssueRecord struct {
	ID         int64      `json:"id" db:"id"`
	IssueUid   uuid.UUID  `json:"issueUid" db:"issue_uid"`
	BookID     int64      `json:"bookId" db:"book_id"`
	UserID     int64      `json:"userId" db:"user_id"`
	BookTitle  string     `json:"bookTitle" db:"book_title"`
	UserName   string     `json:"userName" db:"user_name"`
	IssuedAt   time.Time  `json:"issuedAt" db:"issued_at"`
	ReturnedAt *time.Time `json:"returnedAt" db:"returned_at"`
}

type CreateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	ISBN        string `json:"isbn" validate:"required"`
	TotalCopies int    `json:"totalCopies"`
}

type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Author      *string `json:"author" validate:"omitempty,min=1"`
	ISBN        *string `json:"isbn" validate:"omitempty,min=1"`
	TotalCopies *int    `json:"totalCopies" validate:"omitempty,gte=1"`
}

func (r UpdateBookRequest) Empty() bool {
	return r.Title == nil && r.Author == nil && r.ISBN == nil && r.TotalCopies == nil
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (r UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Email == nil
}

type IssueBookRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
	BookID int64 `json:"bookId" validate:"required,gt=0"`
}
