package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avoronin/lending-service/internal/errs"
	"github.com/avoronin/lending-service/internal/handler"
	"github.com/avoronin/lending-service/internal/model"
	"github.com/avoronin/lending-service/pkg/validate"

	service_mocks "github.com/avoronin/lending-service/internal/handler/mocks"
)

func TestHandler_CreateBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"title":"Dune","author":"Frank Herbert","isbn":"978-0441013593","totalCopies":2}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateBook(context.Background(), model.CreateBookRequest{
						Title:       "Dune",
						Author:      "Frank Herbert",
						ISBN:        "978-0441013593",
						TotalCopies: 2,
					}).
					Return(model.Book{
						ID:              1,
						Title:           "Dune",
						Author:          "Frank Herbert",
						ISBN:            "978-0441013593",
						TotalCopies:     2,
						AvailableCopies: 2,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":1,"title":"Dune","author":"Frank Herbert","isbn":"978-0441013593","totalCopies":2,"availableCopies":2,"createdAt":"0001-01-01T00:00:00Z"}`,
			},
		},
		{
			name: "err. duplicate isbn",
			body: `{"title":"Dune","author":"Frank Herbert","isbn":"978-0441013593","totalCopies":2}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateBook(context.Background(), gomock.Any()).
					Return(model.Book{}, errors.Wrap(errs.ErrConflict, "book with this isbn"))
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"book with this isbn: already exists"}`,
			},
		},
		{
			name:         "err. title required",
			body:         `{"author":"Frank Herbert","isbn":"978-0441013593","totalCopies":2}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'CreateBookRequest.Title' Error:Field validation for 'Title' failed on the 'required' tag"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/books", h.CreateBook)

			r := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_IssueBook(t *testing.T) {
	t.Parallel()
	issuedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	issueUid := uuid.MustParse("f7cdc58f-2caf-4b15-9727-f89dcc629b27")

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"userId":1,"bookId":1}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					IssueBook(context.Background(), model.IssueBookRequest{UserID: 1, BookID: 1}).
					Return(model.IssueRecord{
						ID:        10,
						IssueUid:  issueUid,
						BookID:    1,
						UserID:    1,
						BookTitle: "Dune",
						UserName:  "Paul Atreides",
						IssuedAt:  issuedAt,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":10,"issueUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","bookId":1,"userId":1,"bookTitle":"Dune","userName":"Paul Atreides","issuedAt":"2024-05-01T10:00:00Z","returnedAt":null}`,
			},
		},
		{
			name: "err. no available copies",
			body: `{"userId":1,"bookId":1}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					IssueBook(context.Background(), model.IssueBookRequest{UserID: 1, BookID: 1}).
					Return(model.IssueRecord{}, errors.Wrap(errs.ErrInvalidState, "no available copies to issue"))
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"no available copies to issue: invalid state"}`,
			},
		},
		{
			name: "err. user not found",
			body: `{"userId":42,"bookId":1}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					IssueBook(context.Background(), model.IssueBookRequest{UserID: 42, BookID: 1}).
					Return(model.IssueRecord{}, errors.Wrap(errs.ErrNotFound, "user"))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"user: not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/issues", h.IssueBook)

			r := httptest.NewRequest(http.MethodPost, "/issues", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ReturnBook(t *testing.T) {
	t.Parallel()
	issuedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	returnedAt := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	issueUid := uuid.MustParse("f7cdc58f-2caf-4b15-9727-f89dcc629b27")

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		issueID      string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:    "ok",
			issueID: "10",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ReturnBook(context.Background(), int64(10)).
					Return(model.IssueRecord{
						ID:         10,
						IssueUid:   issueUid,
						BookID:     1,
						UserID:     1,
						BookTitle:  "Dune",
						UserName:   "Paul Atreides",
						IssuedAt:   issuedAt,
						ReturnedAt: &returnedAt,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":10,"issueUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","bookId":1,"userId":1,"bookTitle":"Dune","userName":"Paul Atreides","issuedAt":"2024-05-01T10:00:00Z","returnedAt":"2024-05-02T10:00:00Z"}`,
			},
		},
		{
			name:    "err. already returned",
			issueID: "10",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ReturnBook(context.Background(), int64(10)).
					Return(model.IssueRecord{}, errors.Wrap(errs.ErrInvalidState, "book already returned"))
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"book already returned: invalid state"}`,
			},
		},
		{
			name:         "err. invalid issue id",
			issueID:      "abc",
			mockBehavior: func(r *service_mocks.MockLendingService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid issue id"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/issues/:id/return", h.ReturnBook)

			r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/issues/%s/return", tt.issueID), http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_DeleteBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		bookID       string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:   "ok",
			bookID: "1",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					DeleteBook(context.Background(), int64(1)).
					Return(nil)
			},
			response: response{
				expectedCode: http.StatusNoContent,
				expectedBody: ``,
			},
		},
		{
			name:   "err. open issues block deletion",
			bookID: "1",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					DeleteBook(context.Background(), int64(1)).
					Return(errors.Wrapf(errs.ErrInvalidState, "%d active issue record(s) reference this book", 1))
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"1 active issue record(s) reference this book: invalid state"}`,
			},
		},
		{
			name:   "err. not found",
			bookID: "77",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					DeleteBook(context.Background(), int64(77)).
					Return(errors.Wrap(errs.ErrNotFound, "book"))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book: not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.DELETE("/books/:id", h.DeleteBook)

			r := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/books/%s", tt.bookID), http.NoBody)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_UpdateBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	newTotal := 1

	var tests = []struct {
		name         string
		bookID       string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:   "ok",
			bookID: "1",
			body:   `{"totalCopies":1}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					UpdateBook(context.Background(), int64(1), model.UpdateBookRequest{TotalCopies: &newTotal}).
					Return(model.Book{
						ID:              1,
						Title:           "Dune",
						Author:          "Frank Herbert",
						ISBN:            "978-0441013593",
						TotalCopies:     1,
						AvailableCopies: 1,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":1,"title":"Dune","author":"Frank Herbert","isbn":"978-0441013593","totalCopies":1,"availableCopies":1,"createdAt":"0001-01-01T00:00:00Z"}`,
			},
		},
		{
			name:   "err. total below available",
			bookID: "1",
			body:   `{"totalCopies":1}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					UpdateBook(context.Background(), int64(1), model.UpdateBookRequest{TotalCopies: &newTotal}).
					Return(model.Book{}, errors.Wrap(errs.ErrInvalidState, "total copies cannot be less than available copies"))
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"total copies cannot be less than available copies: invalid state"}`,
			},
		},
		{
			name:         "err. empty patch",
			bookID:       "1",
			body:         `{}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"at least one field is required to update"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.PATCH("/books/:id", h.UpdateBook)

			r := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/books/%s", tt.bookID), strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}
