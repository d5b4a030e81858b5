package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/avoronin/lending-service/internal/model"
)

func (h *Handler) IssueBook(c echo.Context) error {
	var req model.IssueBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	rec, err := h.lendingSvc.IssueBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ReturnBook(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid issue id")
	}
	rec, err := h.lendingSvc.ReturnBook(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListIssues(c echo.Context) error {
	var onlyOpen bool
	if activeParam := c.QueryParam("active"); activeParam != "" {
		var err error
		if onlyOpen, err = strconv.ParseBool(activeParam); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.New("active is invalid"))
		}
	}
	items, err := h.lendingSvc.ListIssues(c.Request().Context(), onlyOpen)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
